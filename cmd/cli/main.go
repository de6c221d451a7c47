package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/submit"
)

const usage = `usage:
  cli submit -url URL [-method GET] [-type http|https]
  cli submit -file jobs.yaml
  cli results
  cli watch

API_BASE selects the server (default http://localhost:8080).`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	api := strings.TrimRight(os.Getenv("API_BASE"), "/")
	if api == "" {
		api = "http://localhost:8080"
	}
	c := &client{base: api, http: &http.Client{Timeout: 15 * time.Second}, out: os.Stdout}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "submit":
		err = c.runSubmit(ctx, os.Args[2:])
	case "results":
		err = c.printResults(ctx)
	case "watch":
		err = c.watch(ctx)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
	out  io.Writer
}

func (c *client) runSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	rawURL := fs.String("url", "", "target URL")
	method := fs.String("method", "", "HTTP method (default GET)")
	typ := fs.String("type", "", "probe type: http or https (default http)")
	file := fs.String("file", "", "YAML file with a list of {url, method, type}")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var reqs []submit.Request
	switch {
	case *file != "":
		b, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		if reqs, err = parseJobs(b); err != nil {
			return err
		}
	case *rawURL != "":
		reqs = []submit.Request{{URL: *rawURL, Method: *method, Type: *typ}}
	default:
		return errors.New("submit needs -url or -file")
	}

	failed := 0
	for _, r := range reqs {
		ack, err := c.submit(ctx, r)
		if err != nil {
			failed++
			fmt.Fprintf(c.out, "%-40s error: %v\n", r.URL, err)
			continue
		}
		fmt.Fprintf(c.out, "%-40s queued id=%s\n", r.URL, ack.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(reqs))
	}
	return nil
}

// parseJobs reads a YAML sequence of jobs.
func parseJobs(b []byte) ([]submit.Request, error) {
	var reqs []submit.Request
	if err := yaml.Unmarshal(b, &reqs); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}
	if len(reqs) == 0 {
		return nil, errors.New("jobs file is empty")
	}
	for i, r := range reqs {
		if strings.TrimSpace(r.URL) == "" {
			return nil, fmt.Errorf("job %d: url is required", i+1)
		}
	}
	return reqs, nil
}

func (c *client) submit(ctx context.Context, r submit.Request) (submit.Ack, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return submit.Ack{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/probe", bytes.NewReader(body))
	if err != nil {
		return submit.Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return submit.Ack{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return submit.Ack{}, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var ack submit.Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return submit.Ack{}, err
	}
	return ack, nil
}

func (c *client) printResults(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/results", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /results: %s", resp.Status)
	}
	var rs []domain.ProbeResult
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return err
	}
	for _, r := range rs {
		printResult(c.out, r)
	}
	return nil
}

func (c *client) watch(ctx context.Context) error {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/results/stream"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev struct {
			Kind    string               `json:"kind"`
			Results []domain.ProbeResult `json:"results"`
			Result  *domain.ProbeResult  `json:"result"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for i := len(ev.Results) - 1; i >= 0; i-- {
			printResult(c.out, ev.Results[i])
		}
		if ev.Result != nil {
			printResult(c.out, *ev.Result)
		}
	}
}

func printResult(w io.Writer, r domain.ProbeResult) {
	state := "OK  "
	if !r.Success {
		state = "FAIL"
	}
	ts := ""
	if r.Timestamp != nil {
		ts = r.Timestamp.Local().Format(time.TimeOnly)
	}
	fmt.Fprintf(w, "%s %s %-5s %-6s %-40s status=%d %.0fms", ts, state, r.Type, r.Method, r.URL, r.StatusCode, r.ElapsedMS)
	if e := r.ErrorString(); e != "" {
		fmt.Fprintf(w, " error=%q", e)
	}
	fmt.Fprintln(w)
}
