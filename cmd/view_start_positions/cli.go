package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/carlaviz/startpositions/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"positions": "viewer.positions",
	"assets":    "maps.assetsDir",
	"output":    "display.output",
}

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\nView the player start positions of the running CARLA town.\n\n", appName)
		fs.PrintDefaults()
	}

	fs.BoolP("verbose", "v", false, "print debug information")
	fs.String("host", "localhost", "IP of the host server")
	fs.IntP("port", "p", 2000, "TCP port to listen to")
	fs.String("positions", "all", "indices of the positions that you want to plot on the map, comma separated")
	fs.String("config", ".", "directory searched for "+config.ConfigFileName)
	fs.String("assets", "carla/planner", "directory holding the town images")
	fs.StringP("output", "o", "", "write the image to this PNG file instead of opening a window")
	return fs
}

// normalizeArgs rewrites the single-dash long form -pos to --positions.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch {
		case a == "--":
			copy(out[i:], args[i:])
			return out
		case a == "-pos":
			out[i] = "--positions"
		case strings.HasPrefix(a, "-pos="):
			out[i] = "--positions=" + strings.TrimPrefix(a, "-pos=")
		default:
			out[i] = a
		}
	}
	return out
}

// parseFlags parses args (without the program name).
func parseFlags(args []string, out io.Writer) (*pflag.FlagSet, error) {
	fs := newFlagSet(out)
	if err := fs.Parse(normalizeArgs(args)); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return fs, nil
}

// bindFlags lays the flags over the loaded config. Only flags set on the
// command line win over config file values.
func bindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	if verbose, _ := fs.GetBool("verbose"); verbose {
		viper.Set("logLevel", "debug")
	}
	return nil
}
