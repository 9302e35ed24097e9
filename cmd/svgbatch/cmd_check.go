package main

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/svgbatch/internal/check"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Report backend, plugin and directory status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.bootstrap(args)
			if err != nil {
				return err
			}
			defer s.log.Close()

			if !check.RunCheck(cmd.Context(), s.cfg, s.log) {
				return errReported
			}
			s.log.Success("All checks passed")
			return nil
		},
	}
}
