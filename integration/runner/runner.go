package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AshramC/YXZX-ARG/internal/bridge"
)

// Runner plays test suites against a running server
type Runner struct {
	BaseURL string
	Timeout time.Duration
	Logger  func(format string, args ...interface{})
}

func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL: baseURL,
		Timeout: 60 * time.Second,
		Logger:  func(string, ...interface{}) {},
	}
}

// LoadTestSuite reads one case file
func LoadTestSuite(filename string) (TestSuite, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	var suite TestSuite
	if err := json.Unmarshal(data, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filename, ".json")
	}
	return suite, nil
}

func (r *Runner) sessionURL(suite TestSuite) string {
	u := strings.Replace(r.BaseURL, "http", "ws", 1) + "/ws/campus"
	q := url.Values{}
	if suite.Lang != "" {
		q.Set("lang", suite.Lang)
	}
	if suite.Query != "" {
		if extra, err := url.ParseQuery(suite.Query); err == nil {
			for k, v := range extra {
				q[k] = v
			}
		}
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// RunSuite plays the session and checks the expectations
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	res := TestRunResult{Suite: suite}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, r.sessionURL(suite), nil)
	if err != nil {
		return res, fmt.Errorf("failed to open session: %w", err)
	}
	defer ws.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}

	picks := slices.Clone(suite.Picks)
	for {
		var msg bridge.Message
		if err := ws.ReadJSON(&msg); err != nil {
			res.Error = fmt.Errorf("session ended without result: %w", err)
			break
		}

		if msg.Type == bridge.TypeResult {
			if err := json.Unmarshal(msg.Payload, &res.Result); err != nil {
				res.Error = err
			}
			break
		}
		if msg.Type == bridge.TypeError {
			res.Error = fmt.Errorf("server error: %s", msg.Payload)
			break
		}
		if msg.Type == bridge.TypeStage {
			var st struct {
				Cmd string `json:"cmd"`
			}
			_ = json.Unmarshal(msg.Payload, &st)
			res.Staged = append(res.Staged, st.Cmd)
			continue
		}
		if msg.ID == "" {
			continue
		}

		res.Requests++
		reply, err := r.answer(msg, &picks, &res)
		if err != nil {
			res.Error = err
			break
		}
		raw, _ := json.Marshal(reply)
		if err := ws.WriteJSON(bridge.Message{Type: bridge.TypeReply, ID: msg.ID, Payload: raw}); err != nil {
			res.Error = err
			break
		}
	}

	res.Duration = time.Since(start)
	if res.Error == nil {
		res.Error = checkExpectations(suite.Expectations, res)
	}
	return res, res.Error
}

func (r *Runner) answer(msg bridge.Message, picks *[]string, res *TestRunResult) (any, error) {
	switch msg.Type {
	case bridge.TypeDialog:
		var line struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		}
		_ = json.Unmarshal(msg.Payload, &line)
		res.Transcript = append(res.Transcript, line.Speaker+": "+line.Text)
		return struct{}{}, nil

	case bridge.TypeAnnounce:
		var a struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(msg.Payload, &a)
		res.Announced = append(res.Announced, a.Text)
		r.Logger("   ▸ %s", a.Text)
		return struct{}{}, nil

	case bridge.TypeChoice:
		var c struct {
			Labels []string `json:"labels"`
		}
		if err := json.Unmarshal(msg.Payload, &c); err != nil || len(c.Labels) == 0 {
			return nil, fmt.Errorf("malformed choice: %s", msg.Payload)
		}
		index := 0
		if len(*picks) > 0 {
			if i := slices.Index(c.Labels, (*picks)[0]); i >= 0 {
				index = i
				*picks = (*picks)[1:]
			}
		}
		r.Logger("   ✓ %s", c.Labels[index])
		return map[string]int{"index": index}, nil

	case bridge.TypeMiniGame:
		return map[string]bool{"success": res.Suite.MiniGames}, nil

	case bridge.TypeEnding:
		return struct{}{}, nil
	}
	return struct{}{}, nil
}

func checkExpectations(exp Expectations, res TestRunResult) error {
	var problems []string
	if exp.Outcome != nil && *exp.Outcome != res.Result.Outcome {
		problems = append(problems, fmt.Sprintf("outcome: expected %q, got %q", *exp.Outcome, res.Result.Outcome))
	}
	if exp.Ended != nil && *exp.Ended != res.Result.Ended {
		problems = append(problems, fmt.Sprintf("ended: expected %v, got %v", *exp.Ended, res.Result.Ended))
	}
	if exp.DemoEnd != nil && *exp.DemoEnd != res.Result.DemoEnd {
		problems = append(problems, fmt.Sprintf("demo_end: expected %v, got %v", *exp.DemoEnd, res.Result.DemoEnd))
	}
	for _, want := range exp.Announced {
		if !slices.Contains(res.Announced, want) {
			problems = append(problems, fmt.Sprintf("announcement %q never shown", want))
		}
	}
	transcript := strings.Join(res.Transcript, "\n")
	for _, want := range exp.TranscriptContains {
		if !strings.Contains(transcript, want) {
			problems = append(problems, fmt.Sprintf("transcript missing %q", want))
		}
	}
	if len(res.Staged) < exp.MinStageCommands {
		problems = append(problems, fmt.Sprintf("stage commands: expected at least %d, got %d", exp.MinStageCommands, len(res.Staged)))
	}
	for _, unwanted := range exp.TranscriptNotContains {
		if strings.Contains(transcript, unwanted) {
			problems = append(problems, fmt.Sprintf("transcript contains %q", unwanted))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("expectations failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
