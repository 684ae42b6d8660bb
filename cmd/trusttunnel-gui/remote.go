package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shini4i/trusttunnel-gui/internal/instance"
)

// runRemote sends cmd to the running instance and prints the outcome.
func runRemote(cmd instance.Command, socketPath string) int {
	client, err := instance.Dial(socketPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "TrustTunnel is not running")
		return exitFailed
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), instance.DefaultTimeout)
	defer cancel()

	resp, err := client.Call(ctx, cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailed
	}
	return printResponse(os.Stdout, os.Stderr, cmd, resp)
}

func printResponse(stdout, stderr io.Writer, cmd instance.Command, resp *instance.Response) int {
	if !resp.Success {
		msg := "request failed"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		fmt.Fprintln(stderr, "Error:", msg)
		return exitFailed
	}
	if cmd != instance.CommandStatus {
		fmt.Fprintln(stdout, "OK")
		return exitOK
	}

	status, err := resp.DecodeStatus()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitFailed
	}
	fmt.Fprintf(stdout, "State:      %s\n", status.State)
	if status.Credential != "" {
		fmt.Fprintf(stdout, "Credential: %s\n", status.Credential)
	}
	if status.Mode != "" {
		fmt.Fprintf(stdout, "Mode:       %s\n", status.Mode)
	}
	fmt.Fprintf(stdout, "PID:        %d\n", status.PID)
	if status.Detail != "" {
		fmt.Fprintf(stdout, "\n%s\n", status.Detail)
	}
	return exitOK
}
