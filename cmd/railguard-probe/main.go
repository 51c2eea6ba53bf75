// railguard-probe - ESP32-CAM 대신 합성 프레임을 보내 파이프라인 전체를 점검하는 CLI
//
// 각 트리거마다 프레임을 POST /analyze로 보내고, 마지막에 /status와 /alerts를 출력한다.
//   - OBSTACLE: 자동차 모양 장애물 프레임
//   - 그 외 (VIBRATION, HOLE, ...): 빈 선로 프레임

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type probeOptions struct {
	baseURL  string
	triggers []string
	raw      bool
	timeout  time.Duration
	limit    int
}

func run(args []string, out io.Writer) error {
	var opts probeOptions
	flagSet := pflag.NewFlagSet("railguard-probe", pflag.ContinueOnError)
	flagSet.StringVar(&opts.baseURL, "url", "http://localhost:8000", "RailGuard backend base URL")
	flagSet.StringSliceVar(&opts.triggers, "trigger", []string{"OBSTACLE", "VIBRATION", "HOLE"}, "sensor triggers to simulate, in order")
	flagSet.BoolVar(&opts.raw, "raw", false, "send raw JPEG bodies like the ESP32-CAM instead of multipart uploads")
	flagSet.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-request timeout (verification can be slow)")
	flagSet.IntVar(&opts.limit, "limit", 5, "number of alerts to list at the end")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	opts.baseURL = strings.TrimRight(opts.baseURL, "/")

	obstacle, err := obstacleFrame()
	if err != nil {
		return fmt.Errorf("render obstacle frame: %w", err)
	}
	empty, err := emptyTrackFrame()
	if err != nil {
		return fmt.Errorf("render empty frame: %w", err)
	}

	httpClient := &http.Client{Timeout: opts.timeout}
	ctx := context.Background()

	for _, trigger := range opts.triggers {
		frame := empty
		if strings.EqualFold(trigger, "OBSTACLE") {
			frame = obstacle
		}

		fmt.Fprintf(out, "==> POST /analyze trigger=%s (%d bytes)\n", trigger, len(frame))
		body, err := postFrame(ctx, httpClient, opts, trigger, frame)
		if err != nil {
			return err
		}
		if err := printJSON(out, body); err != nil {
			return err
		}
	}

	for _, path := range []string{"/status", fmt.Sprintf("/alerts?limit=%d", opts.limit)} {
		fmt.Fprintf(out, "==> GET %s\n", path)
		body, err := get(ctx, httpClient, opts.baseURL+path)
		if err != nil {
			return err
		}
		if err := printJSON(out, body); err != nil {
			return err
		}
	}
	return nil
}

func postFrame(ctx context.Context, c *http.Client, opts probeOptions, trigger string, frame []byte) ([]byte, error) {
	var body io.Reader
	contentType := "image/jpeg"

	if opts.raw {
		body = bytes.NewReader(frame)
	} else {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "test_image.jpg")
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(frame); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		body = &buf
		contentType = mw.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/analyze", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Trigger-Reason", trigger)
	return do(c, req)
}

func get(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return do(c, req)
}

func do(c *http.Client, req *http.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func printJSON(out io.Writer, body []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	_, err := fmt.Fprintln(out, pretty.String())
	return err
}
