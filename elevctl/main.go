// elevctl talks to a running elevdispatch control server.
//
//	elevctl -addr 127.0.0.1:4242 call 5 up
//	elevctl -addr 127.0.0.1:4242 press 10 0
//	elevctl -addr 127.0.0.1:4242 status
//	elevctl -addr 127.0.0.1:4242 watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"
	"elevdispatch/elevnetwork"
)

// events replayed when watch starts
const WATCH_BACKLOG = 20

func usage() {
	fmt.Fprintln(os.Stderr, "usage: elevctl [-addr ip:port] call <floor> <up|down|none> | press <floor> <car> | status | watch")
	flag.PrintDefaults()
}

func atoi(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, s)
	}
	return n, nil
}

func printStatus(snaps []common.CarSnapshot) {
	fmt.Printf("%-4s %-6s %-6s %-14s %s\n", "CAR", "FLOOR", "DIR", "STATUS", "PENDING")
	for _, s := range snaps {
		fmt.Printf("%-4d %-6d %-6s %-14s %v\n", s.ID, s.Floor, s.Direction, s.Status, s.Pending)
	}
}

func printEvent(ev elevlog.Event) {
	fmt.Printf("%s %-14s %s\n", ev.Time.Format("15:04:05.000"), ev.Kind, ev.Text)
}

func run(ctx context.Context, addr string, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	var onEvent func(elevlog.Event)
	if args[0] == "watch" {
		onEvent = printEvent
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := elevnetwork.Dial(dialCtx, addr, onEvent)
	if err != nil {
		return err
	}
	defer client.Close()

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()

	switch args[0] {
	case "call":
		if len(args) != 3 {
			return errors.New("call needs <floor> <direction>")
		}
		floor, err := atoi("floor", args[1])
		if err != nil {
			return err
		}
		dir, err := common.ParseDirection(args[2])
		if err != nil {
			return err
		}
		res, err := client.Call(reqCtx, floor, dir)
		if err != nil {
			return err
		}
		fmt.Println(res)

	case "press":
		if len(args) != 3 {
			return errors.New("press needs <floor> <car>")
		}
		floor, err := atoi("floor", args[1])
		if err != nil {
			return err
		}
		car, err := atoi("car", args[2])
		if err != nil {
			return err
		}
		res, err := client.Press(reqCtx, floor, car)
		if err != nil {
			return err
		}
		fmt.Println(res)

	case "status":
		snaps, err := client.Status(reqCtx)
		if err != nil {
			return err
		}
		printStatus(snaps)

	case "watch":
		if err := client.Subscribe(reqCtx, WATCH_BACKLOG); err != nil {
			return err
		}
		fmt.Printf("session %d watching %s (Ctrl+C to stop)\n", client.SessionID(), addr)
		select {
		case <-ctx.Done():
		case <-client.Done():
			return errors.New("connection closed by server")
		}

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:4242", "control server addr ip:port")
	flag.Usage = usage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *addr, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "elevctl:", err)
		os.Exit(1)
	}
}
