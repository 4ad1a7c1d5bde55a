package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-annotate/internal/scene"
	"github.com/joeblew999/plat-annotate/internal/server"
)

// Options defines all CLI flags and env vars for the annotation server.
// Flags: --host, --port, --data-dir, --log-level, --width, --height, --no-db
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir  string `doc:"Directory for sessions, sources and archives" default:".data"`
	LogLevel string `doc:"Log level (debug, info, warn, error)" default:"info"`
	Width    int    `doc:"Default viewport width in pixels" default:"800"`
	Height   int    `doc:"Default viewport height in pixels" default:"600"`
	NoDB     bool   `doc:"Do not open DuckDB" default:"false"`
}

func setupLogging(opts *Options) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func newServer(opts *Options) *server.Server {
	return server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		Viewport: scene.Viewport{
			Width:  float64(opts.Width),
			Height: float64(opts.Height),
		},
		NoDB: opts.NoDB,
	})
}

// marshal encodes v as indented JSON, or as YAML when asYAML is set. YAML
// goes through JSON first so custom JSON encodings are kept.
func marshal(v any, asYAML bool) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || !asYAML {
		return data, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		setupLogging(opts)
		var srv *server.Server

		hooks.OnStart(func() {
			srv = newServer(opts)
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			logrus.WithFields(logrus.Fields{
				"server":  baseURL,
				"data":    opts.DataDir,
				"docs":    baseURL + "/docs",
				"openapi": baseURL + "/openapi.json",
			}).Info("plat-annotate API server starting")

			if err := http.ListenAndServe(addr, srv); err != nil {
				srv.Close()
				logrus.WithError(err).Fatal("Server error")
			}
		})

		hooks.OnStop(func() {
			if srv == nil {
				return
			}
			if err := srv.Close(); err != nil {
				logrus.WithError(err).Warn("Closing server")
			}
		})
	})

	cli.Root().Use = "annotate"
	cli.Root().Short = "Map annotations that can be clicked, dragged and tiled"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			srv := newServer(opts)
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			output, err := marshal(srv.OpenAPI(), useYAML)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// render subcommand: draw a scene file and print the resulting style
	renderCmd := &cobra.Command{
		Use:   "render <scene.yaml>",
		Short: "Render a scene file and print the style with its annotation layers",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			sc, err := scene.Load(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
				os.Exit(1)
			}
			s, err := sc.Render()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error rendering scene: %v\n", err)
				os.Exit(1)
			}

			useYAML, _ := cmd.Flags().GetBool("yaml")
			output, err := marshal(s, useYAML)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling style: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	renderCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(renderCmd)

	cli.Run()
}
