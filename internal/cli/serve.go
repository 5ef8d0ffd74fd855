package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framestamp/pkg/server"
)

type serveOpts struct {
	addr      string
	templates string
	maxBodyMB int
	debug     bool
}

func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP render service",
		Long: `Serve exposes rendering over HTTP:

  POST /v1/render     stamp a frame (JSON body, image response)
  POST /v1/inspect    resolved geometry as JSON
  POST /v1/validate   structural issues of a template
  GET  /v1/templates  templates in --templates
  GET  /healthz, /version

Requests may name a template file from --templates or send one inline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default: config or "+server.DefaultAddr+")")
	cmd.Flags().StringVar(&opts.templates, "templates", "", "directory of template files clients may use by name")
	cmd.Flags().IntVar(&opts.maxBodyMB, "max-body-mb", 0, "request body limit in MiB")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "outline every shape's bounding box")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg := c.Config.Server
	addr := firstNonEmpty(opts.addr, cfg.Addr)
	dir := firstNonEmpty(opts.templates, cfg.TemplateDir)
	maxMB := opts.maxBodyMB
	if maxMB == 0 {
		maxMB = cfg.MaxUploadMB
	}
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}

	sc := server.NewScene(dir, c.fontDirs(dir), opts.debug || c.Config.Debug, c.Logger)
	srv := server.New(sc, server.Options{
		Addr:        addr,
		TemplateDir: dir,
		MaxBody:     int64(maxMB) << 20,
		Logger:      c.Logger,
	})
	printInfo("Serving on %s", StyleValue.Render("http://"+srv.Addr()))
	if dir != "" {
		printDetail("Templates: %s", dir)
	}
	return srv.ListenAndServe(ctx)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
