package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/export"
)

var (
	exportOut        string
	exportS3Bucket   string
	exportS3Key      string
	exportS3Region   string
	exportS3Endpoint string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the migration ledger as JSONL",
	Long: `Export every ledger record and log entry as JSON lines.

Without --out or --s3-bucket the export is written to stdout.

Examples:
  mongrato export > ledger.jsonl
  mongrato export --out audit/ledger.jsonl
  mongrato export --s3-bucket audit --s3-key mongrato/ledger.jsonl
  mongrato export --s3-bucket audit --s3-key ledger.jsonl --s3-endpoint http://localhost:9000
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		var dests []export.Destination
		if exportOut != "" {
			dests = append(dests, export.FileDestination{Path: exportOut})
		}
		if exportS3Bucket != "" {
			d, err := export.NewS3Destination(ctx, exportS3Bucket, exportS3Key, exportS3Region, exportS3Endpoint)
			if err != nil {
				return err
			}
			dests = append(dests, d)
		}

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		var buf bytes.Buffer
		if err := export.ExportJSONL(ctx, s.ledger, &buf); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if len(dests) == 0 {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		for _, d := range dests {
			if err := d.Write(ctx, buf.Bytes()); err != nil {
				return fmt.Errorf("writing %s: %w", d, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ Exported ledger to %s (%d bytes)\n", d, buf.Len())
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write the export to a file")
	exportCmd.Flags().StringVar(&exportS3Bucket, "s3-bucket", "", "Upload the export to this S3 bucket")
	exportCmd.Flags().StringVar(&exportS3Key, "s3-key", "mongrato/ledger.jsonl", "S3 object key")
	exportCmd.Flags().StringVar(&exportS3Region, "s3-region", "us-east-1", "S3 region")
	exportCmd.Flags().StringVar(&exportS3Endpoint, "s3-endpoint", "", "S3-compatible endpoint (enables path-style addressing)")
}
