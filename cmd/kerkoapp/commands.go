package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edtechhub/kerkoapp/internal/app"
	"github.com/edtechhub/kerkoapp/internal/config"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kerkoapp <command> [flags]",
		Short:         "Zotero library search application",
		Long:          "Web application serving a searchable view of a Zotero group library.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: heredoc.Doc(`
			$ kerkoapp sync
			$ kerkoapp serve
			$ kerkoapp config list
		`),
		Annotations: map[string]string{
			"help:environment": heredoc.Doc(`
				KERKOAPP_CONFIG_FILES      TOML files to load, separated by ';' or ','
				KERKOAPP_JSON_*            JSON configuration documents
				KERKOAPP_<SECTION>__<KEY>  single settings, e.g. KERKOAPP_ZOTERO__API_KEY
			`),
		},
	}

	cmd.AddCommand(
		serveCommand(),
		syncCommand(),
		indexCommand(),
		assetsCommand(),
		configCommand(),
		versionCommand(),
	)

	return cmd
}

// withApp loads the configuration, builds the application and closes it
// once run returns.
func withApp(run func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		a, err := app.New(cfg, app.Options{BuildVersion: buildVersion, GitCommit: gitCommit})
		if err != nil {
			return err
		}

		defer func() {
			if err := a.Close(); err != nil {
				log.Errorf("[APP] closing: %s", err.Error())
			}
		}()

		return run(cmd, a)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web application",
		Example: heredoc.Doc(`
			$ kerkoapp serve
			$ KERKOAPP_SERVICE__PORT=5000 kerkoapp serve
		`),
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			log.Printf("===> kerkoapp starting up <===")
			return a.Serve(cmd.Context())
		}),
	}
}

func syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the library from Zotero and rebuild the index",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			return a.Sync(cmd.Context())
		}),
	}
}

func indexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index from the cached library",
		Long: heredoc.Doc(`
			Rebuild the search index from the items cached by the last sync,
			without contacting Zotero.
		`),
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			return a.Reindex(cmd.Context())
		}),
	}
}

func assetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets <command>",
		Short: "Manage static assets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build the static asset bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			return app.BuildAssets(cfg.Assets)
		},
	})

	return cmd
}

func configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Inspect the configuration",
		Example: heredoc.Doc(`
			$ kerkoapp config list
		`),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the merged configuration, secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()

			return enc.Encode(cfg.Redacted())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "env <file>...",
		Short: "Print TOML configuration files as environment variable exports",
		Example: heredoc.Doc(`
			$ kerkoapp config env common.toml production.toml > setup_env.sh
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := config.ExportScript(args)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), script)
			return err
		},
	})

	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if buildVersion == "" {
				fmt.Fprintln(os.Stderr, "Version information not available")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "kerkoapp version %s (%s)\n", buildVersion, gitCommit)
			return nil
		},
	}
}
