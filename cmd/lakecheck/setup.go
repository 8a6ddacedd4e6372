package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const envTemplate = `# lakecheck environment
# AWS access uses the default credential chain (profile, SSO, instance role).
AWS_REGION=us-west-2
ATHENA_DATABASE=default
ATHENA_WORKGROUP=
ATHENA_OUTPUT_LOCATION=s3://your-bucket/athena-results/

# LLM provider: openai (bearer token) or anthropic (key-pair gateway)
LLM_PROVIDER=openai
LLM_ENDPOINT=
LLM_API_KEY=
LLM_KEY_ID=
LLM_SECRET_KEY=

# Optional GitHub DDL lookup for schema context
GITHUB_SCHEMA_ENABLED=false
GITHUB_OWNER=
GITHUB_REPO=
GITHUB_TOKEN=
`

func newSetupCmd(opts *globalOptions) *cobra.Command {
	var (
		force bool
		check bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write an environment scaffold and probe AWS access",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if _, err := os.Stat(".env"); os.IsNotExist(err) || force {
				if err := os.WriteFile(".env", []byte(envTemplate), 0o600); err != nil {
					return fmt.Errorf("write .env: %w", err)
				}
				fmt.Fprintln(out, "Wrote .env scaffold. Fill in the credentials before running validations.")
			} else {
				fmt.Fprintln(out, ".env already exists, leaving it alone (use --force to overwrite).")
			}

			if !check {
				return nil
			}

			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			executor, _, err := app.awsClients(cmd.Context())
			if err != nil {
				return err
			}

			if err := executor.TestConnection(cmd.Context()); err != nil {
				return fmt.Errorf("Athena connection failed: %w", err)
			}
			fmt.Fprintln(out, "Athena connection OK.")

			if executor.OutputLocation() == "" {
				fmt.Fprintln(out, "No output location configured, relying on the workgroup default.")
				return nil
			}
			if err := executor.PreflightOutputLocation(cmd.Context()); err != nil {
				return fmt.Errorf("output location check failed: %w", err)
			}
			fmt.Fprintf(out, "Output location %s is writable.\n", executor.OutputLocation())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing .env")
	cmd.Flags().BoolVar(&check, "check", false, "probe the Athena connection and result location")
	return cmd
}
