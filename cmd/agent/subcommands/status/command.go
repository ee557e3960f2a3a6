// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package status implements 'agent status'.
package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataDog/datadog-collector-core/cmd/agent/command"
	"github.com/DataDog/datadog-collector-core/pkg/status"
)

type cliParams struct {
	*command.GlobalParams

	jsonStatus bool
}

// Commands returns a slice of subcommands for the 'agent' command.
func Commands(globalParams *command.GlobalParams) []*cobra.Command {
	cliParams := &cliParams{GlobalParams: globalParams}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current status",
		Long:  `Queries the status endpoint of the running agent and prints it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return run(ctx, cliParams, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&cliParams.jsonStatus, "json", "j", false, "print out raw json")
	return []*cobra.Command{cmd}
}

func run(ctx context.Context, cliParams *cliParams, w io.Writer) error {
	cfg, err := command.LoadConfig(cliParams.GlobalParams)
	if err != nil {
		return err
	}
	if cfg.StatusAddr == "" {
		return command.NewConfigError(fmt.Errorf("status_addr is not set, the status endpoint is disabled"))
	}

	body, err := fetch(ctx, fmt.Sprintf("http://%s/status", cfg.StatusAddr))
	if err != nil {
		return fmt.Errorf("could not reach agent: %v. Make sure the agent is running before requesting the status", err)
	}
	if cliParams.jsonStatus {
		fmt.Fprintln(w, string(body))
		return nil
	}

	out, err := status.FormatStatus(body)
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	return nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, body)
	}
	return body, nil
}
