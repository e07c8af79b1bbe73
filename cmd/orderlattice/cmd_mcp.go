package main

import (
	"fmt"

	"github.com/nvandessel/orderlattice/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve orderlattice tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing sweep,
point, run listing, result and delete tools, plus the latest stored run
as a resource.

Tool calls are rate limited and recorded in ~/.orderlattice/audit.jsonl.
Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			noAudit, _ := cmd.Flags().GetBool("no-audit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rs, err := openStore(cfg)
			if err != nil {
				return err
			}

			auditDir := ""
			if !noAudit {
				if auditDir, err = dataDir(cfg); err != nil {
					rs.Close()
					return err
				}
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:     "orderlattice",
				Version:  version,
				Store:    rs,
				Settings: cfg,
				AuditDir: auditDir,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				rs.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().Bool("no-audit", false, "Disable the tool call audit log")
	return cmd
}
