// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/imulink/pkg/config"
	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/spf13/cobra"
)

var (
	pollCommand    int
	pollCount      int
	pollTimeout    time.Duration
	pollInterval   time.Duration
	pollRecordPath string
	pollShowAll    bool
	pollUseTUI     bool

	pollStatsInterval time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the IMU and track CRC errors",
	Long: `Repeatedly send a request to the IMU and decode its response.

Each cycle sends FE FE <command> <crc>, waits for the response until the
timeout expires, verifies its CRC-16 and prints the decoded frame. Statistics
track transmitted requests, received frames, CRC errors (as a percentage of
received frames) and timeouts.

Commands:
  0xA0 - READ_DATA (little-endian float32 sensor values)
  0xD0 - FIRMWARE_CHECK (firmware version byte)

By default every frame and the link counters per cycle are printed, and a full
statistics summary every --stats-interval. With --tui a terminal UI shows live
statistics and recent events instead.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().IntVar(&pollCommand, "command", imu.CmdReadData, "Request command byte")
	pollCmd.Flags().IntVarP(&pollCount, "count", "n", 0, "Number of requests (0 = until interrupted)")
	pollCmd.Flags().DurationVar(&pollTimeout, "timeout", 5*time.Millisecond, "Response timeout")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 5*time.Millisecond, "Pause between requests")
	pollCmd.Flags().StringVar(&pollRecordPath, "record", "", "Record the session to a CBOR file")
	pollCmd.Flags().BoolVar(&pollShowAll, "show-all", true, "Show valid frames (not just errors)")
	pollCmd.Flags().BoolVar(&pollUseTUI, "tui", false, "Use terminal UI")
	pollCmd.Flags().DurationVar(&pollStatsInterval, "stats-interval", 10*time.Second, "Statistics summary interval in text mode (0 = only at exit)")
}

// pollEvent is the outcome of one request/response cycle
type pollEvent struct {
	seq              uint64
	request          []byte
	frame            *imu.Frame
	decodeErr        error
	validationErrors []imu.ValidationError
	timeout          bool
	stats            imu.Statistics // Snapshot after this cycle
}

// poller drives the request/response cycle over a connection
type poller struct {
	conn     io.ReadWriter
	command  uint8
	timeout  time.Duration
	interval time.Duration
	stats    *imu.Statistics
	recorder *imu.Recorder
	errOut   io.Writer

	// onStats is called with a snapshot every statsInterval
	statsInterval time.Duration
	onStats       func(imu.Statistics)

	results chan decodeResult
}

func newPoller(conn io.ReadWriter, command uint8, timeout, interval time.Duration) *poller {
	return &poller{
		conn:     conn,
		command:  command,
		timeout:  timeout,
		interval: interval,
		stats:    imu.NewStatistics(),
		errOut:   os.Stderr,
		results:  make(chan decodeResult, 16),
	}
}

// run sends count requests (0 = until ctx is done), calling onEvent after
// every cycle. It returns nil when ctx is cancelled or the count is reached.
func (p *poller) run(ctx context.Context, count int, onEvent func(pollEvent)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go readFrames(ctx, p.conn, p.results)

	var statsC <-chan time.Time
	if p.statsInterval > 0 && p.onStats != nil {
		statsTicker := time.NewTicker(p.statsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for seq := uint64(1); count == 0 || seq <= uint64(count); seq++ {
		if ctx.Err() != nil {
			return nil
		}

		ev, err := p.cycle(ctx, seq)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		ev.stats = *p.stats
		onEvent(ev)

		select {
		case <-statsC:
			p.onStats(*p.stats)
		default:
		}

		if p.interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.interval):
			}
		}
	}
	return nil
}

// cycle sends one request and waits for its response
func (p *poller) cycle(ctx context.Context, seq uint64) (pollEvent, error) {
	if r, ok := p.conn.(inputResetter); ok {
		r.ResetInputBuffer()
	}
	p.drain()

	request := imu.EncodeRequest(p.command)
	if _, err := p.conn.Write(request); err != nil {
		return pollEvent{}, fmt.Errorf("failed to send request: %w", err)
	}
	p.stats.RecordTransmit()
	p.record(imu.Record{Time: time.Now(), Direction: imu.DirectionTx, Raw: request, Valid: true})

	ev := pollEvent{seq: seq, request: request}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ev, nil

	case res := <-p.results:
		if res.readErr != nil {
			return ev, fmt.Errorf("connection lost: %w", res.readErr)
		}
		if res.decodeErr != nil {
			ev.decodeErr = res.decodeErr
			p.stats.Update(nil, res.decodeErr, nil)
			if raw := rejectedBytes(res.decodeErr); raw != nil {
				p.record(imu.Record{Time: time.Now(), Direction: imu.DirectionRx, Raw: raw, Valid: false})
			}
			return ev, nil
		}
		ev.frame = res.frame
		ev.validationErrors = imu.ValidateFrame(res.frame, p.command)
		p.stats.Update(res.frame, nil, ev.validationErrors)
		p.recordFrame(res.frame)
		return ev, nil

	case <-timer.C:
		ev.timeout = true
		p.stats.RecordTimeout()
		return ev, nil
	}
}

// drain discards results left over from a previous cycle
func (p *poller) drain() {
	for {
		select {
		case res := <-p.results:
			if res.readErr != nil {
				// Keep fatal errors for the next wait
				p.results <- res
				return
			}
		default:
			return
		}
	}
}

func (p *poller) record(rec imu.Record) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Write(rec); err != nil {
		fmt.Fprintf(p.errOut, "Record error: %v\n", err)
	}
}

func (p *poller) recordFrame(frame *imu.Frame) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.WriteFrame(frame); err != nil {
		fmt.Fprintf(p.errOut, "Record error: %v\n", err)
	}
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPollConfig(cmd, cfg); err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.Connection)
	if err != nil {
		return err
	}
	defer conn.Close()

	p := newPoller(conn, uint8(pollCommand), pollTimeout, pollInterval)

	if pollRecordPath != "" {
		f, err := os.Create(pollRecordPath)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		p.recorder = imu.NewRecorder(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if pollUseTUI {
		return runPollTUI(ctx, p, connInfo)
	}

	fmt.Printf("imulink - Poll\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Command: %s (0x%02X), timeout %v\n", imu.FormatCommand(p.command), p.command, pollTimeout)
	if pollStatsInterval > 0 {
		fmt.Printf("Statistics interval: %v\n", pollStatsInterval)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	p.statsInterval = pollStatsInterval
	p.onStats = func(s imu.Statistics) {
		fmt.Println()
		fmt.Print(s.String())
	}

	err = p.run(ctx, pollCount, func(ev pollEvent) {
		printPollEvent(os.Stdout, ev, pollShowAll)
		if pollShowAll {
			printLinkCounters(os.Stdout, p.stats)
		}
	})

	fmt.Println()
	fmt.Print(p.stats.String())
	return err
}

// applyPollConfig fills the poll settings not given on the command line from cfg
func applyPollConfig(cmd *cobra.Command, cfg config.Config) error {
	flags := cmd.Flags()
	if !flags.Changed("command") {
		pollCommand = cfg.Poll.Command
	}
	if !flags.Changed("count") {
		pollCount = cfg.Poll.Count
	}
	if !flags.Changed("timeout") {
		pollTimeout = cfg.Poll.Timeout
	}
	if !flags.Changed("interval") {
		pollInterval = cfg.Poll.Interval
	}
	if !flags.Changed("stats-interval") {
		pollStatsInterval = cfg.Stats.Interval
	}
	if pollCommand < 0 || pollCommand > 0xFF {
		return fmt.Errorf("command must fit in a byte (got %d)", pollCommand)
	}
	if pollStatsInterval < 0 {
		return fmt.Errorf("stats interval must be >= 0")
	}
	return nil
}

// printPollEvent prints the outcome of one cycle
func printPollEvent(w io.Writer, ev pollEvent, showAll bool) {
	if showAll {
		fmt.Fprintf(w, "<---- #%d tx: %s\n", ev.seq, imu.FormatHex(ev.request))
	}

	switch {
	case ev.timeout:
		fmt.Fprintf(w, "[%s] \033[1;33mTIMEOUT\033[0m no response to request #%d\n",
			time.Now().Format("15:04:05.000"), ev.seq)

	case ev.decodeErr != nil:
		fmt.Fprintf(w, "[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", time.Now().Format("15:04:05.000"), ev.decodeErr)
		if raw := rejectedBytes(ev.decodeErr); raw != nil {
			fmt.Fprintf(w, "  rx: %s\n", imu.FormatHex(raw))
		}

	case ev.frame != nil:
		if len(ev.validationErrors) > 0 {
			fmt.Fprintf(w, "[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n",
				ev.frame.Timestamp().Format("15:04:05.000"), imu.FormatCommand(ev.frame.Command()), ev.frame.Command())
			fmt.Fprintf(w, "  CRC: \033[1;32mOK\033[0m\n")
			for i, verr := range ev.validationErrors {
				fmt.Fprintf(w, "  Issue %d: %s\n", i+1, verr.Message)
			}
		} else if showAll {
			fmt.Fprintf(w, "----> rx: %s\n", imu.FormatHex(ev.frame.Raw()))
			fmt.Fprint(w, imu.FormatFrame(ev.frame))
		}
	}
}

// printLinkCounters prints the per-cycle counters of the host script
func printLinkCounters(w io.Writer, s *imu.Statistics) {
	fmt.Fprintf(w, "tx: %d  rx: %d  crc error: %.1f%%\n\n", s.Transmitted, s.Received, s.CRCErrorPercent())
}

// rejectedBytes returns the raw bytes of a rejected frame, if known
func rejectedBytes(err error) []byte {
	var de *imu.DecodeError
	if errors.As(err, &de) {
		return de.Raw
	}
	return nil
}
