// Package main is ocppctl, a command line client for the central system's
// external command channel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/morezero/ocpp-central-system/internal/config"
	"github.com/morezero/ocpp-central-system/pkg/commands"
	"github.com/morezero/ocpp-central-system/pkg/commsutil"
)

const usage = `Usage: ocppctl [command]
       ocppctl call <station> <action> [json] [--no-wait] [--raw] [--timeout=30s]
                                     Send an OCPP action to a connected station and print the confirmation.
                                     --raw forwards the JSON without checking it against the action schema.
       ocppctl stations              List connected stations.

Examples:
  ocppctl call CP001 Reset '{"type":"Soft"}'
  ocppctl call CP001 RemoteStartTransaction '{"connectorId":1,"idTag":"04A2B3C4"}'
  ocppctl call CP001 ClearCache --no-wait

Environment: COMMS_URL (default nats://127.0.0.1:4222), OCPP_COMMAND_SUBJECT (default ocpp.v16.commands).
`

const defaultTimeout = 30 * time.Second

type callArgs struct {
	station string
	action  string
	params  json.RawMessage
	noWait  bool
	raw     bool
	timeout time.Duration
}

// parseCallArgs reads the arguments following "call".
func parseCallArgs(args []string) (*callArgs, error) {
	out := &callArgs{timeout: defaultTimeout}
	var positional []string
	for _, a := range args {
		switch {
		case a == "--no-wait":
			out.noWait = true
		case a == "--raw":
			out.raw = true
		case strings.HasPrefix(a, "--timeout="):
			d, err := time.ParseDuration(strings.TrimPrefix(a, "--timeout="))
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("invalid timeout %q", a)
			}
			out.timeout = d
		case strings.HasPrefix(a, "--"):
			return nil, fmt.Errorf("unknown flag %q", a)
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) < 2 || len(positional) > 3 {
		return nil, errors.New("require <station> <action> [json]")
	}
	out.station, out.action = positional[0], positional[1]
	out.params = json.RawMessage("{}")
	if len(positional) == 3 {
		if !json.Valid([]byte(positional[2])) {
			return nil, fmt.Errorf("params are not valid JSON: %s", positional[2])
		}
		out.params = json.RawMessage(positional[2])
	}
	return out, nil
}

func (a *callArgs) request() *commands.Request {
	await := !a.noWait
	return &commands.Request{
		Type:      commands.TypeCall,
		Station:   a.station,
		Action:    a.action,
		Params:    a.params,
		Await:     &await,
		Raw:       a.raw,
		TimeoutMs: int(a.timeout / time.Millisecond),
	}
}

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "call":
		ca, err := parseCallArgs(args[1:])
		if err != nil {
			log.Fatalf("ocppctl call: %v", err)
		}
		if err := runCall(ca); err != nil {
			log.Fatalf("ocppctl call: %v", err)
		}
	case "stations":
		if err := runStations(); err != nil {
			log.Fatalf("ocppctl stations: %v", err)
		}
	case "help", "-h", "--help", "":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}
}

func newClient() (*commands.Client, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, "ocppctl")
	if err != nil {
		return nil, nil, fmt.Errorf("connect NATS: %w", err)
	}
	return commands.NewClient(nc, cfg.CommandSubject), nc.Close, nil
}

func runCall(ca *callArgs) error {
	client, closeFn, err := newClient()
	if err != nil {
		return err
	}
	defer closeFn()

	// leave the central system time to report a station timeout itself
	ctx, cancel := context.WithTimeout(context.Background(), ca.timeout+5*time.Second)
	defer cancel()
	resp, err := client.Do(ctx, ca.request())
	if err != nil {
		return err
	}
	return printResponse(os.Stdout, resp)
}

func runStations() error {
	client, closeFn, err := newClient()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ids, err := client.Stations(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func printResponse(w io.Writer, resp *commands.Response) error {
	if !resp.Ok {
		msg := fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message)
		if resp.Error.Retryable {
			msg += " (retryable)"
		}
		return errors.New(msg)
	}
	if resp.Result == nil {
		fmt.Fprintln(w, "sent")
		return nil
	}
	out, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
