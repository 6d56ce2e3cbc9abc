//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/pearquote/quote-service/internal/ports"
)

// testContext holds state shared across step definitions within a scenario.
type testContext struct {
	svc          *testService
	client       *http.Client
	userID       string
	vars         map[string]string
	response     *http.Response
	responseBody []byte
	decoded      any
}

// newTestContext creates a new test context with sensible defaults.
func newTestContext() *testContext {
	return &testContext{
		client: &http.Client{Timeout: 10 * time.Second},
		vars:   map[string]string{},
	}
}

// reset stops the scenario's service and clears response state.
func (tc *testContext) reset() {
	if tc.svc != nil {
		tc.svc.Close()
	}

	tc.svc = nil
	tc.userID = ""
	tc.vars = map[string]string{}
	tc.response = nil
	tc.responseBody = nil
	tc.decoded = nil
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := newTestContext()

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^the quote service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^the quote service is running with AI assistance disabled$`, tc.theServiceIsRunningWithoutAI)
	ctx.Step(`^the AI provider responds with:$`, tc.theAIProviderRespondsWith)
	ctx.Step(`^the AI provider fails with status (\d+)$`, tc.theAIProviderFailsWith)
	ctx.Step(`^the AI provider should have been called (\d+) times?$`, tc.theAIProviderShouldHaveBeenCalled)
	ctx.Step(`^I am signed in as "([^"]*)"$`, tc.iAmSignedInAs)
	ctx.Step(`^I am not signed in$`, tc.iAmNotSignedIn)
	ctx.Step(`^I send a (GET|DELETE) request to "([^"]*)"$`, tc.iSendRequest)
	ctx.Step(`^I send a (POST|PUT) request to "([^"]*)" with:$`, tc.iSendRequestWith)
	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, tc.theFieldShouldBeString)
	ctx.Step(`^the response field "([^"]*)" should be (-?\d+(?:\.\d+)?)$`, tc.theFieldShouldBeNumber)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, tc.theFieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should be null$`, tc.theFieldShouldBeNull)
	ctx.Step(`^the response field "([^"]*)" should have (\d+) entries$`, tc.theFieldShouldHaveEntries)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, tc.iRememberField)
}

func (tc *testContext) start(features map[string]bool) error {
	if tc.svc != nil {
		tc.svc.Close()
	}

	svc, err := startService(features)
	if err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	tc.svc = svc

	return tc.iSendRequest(http.MethodGet, "/-/live")
}

func (tc *testContext) theServiceIsRunning() error {
	return tc.start(nil)
}

func (tc *testContext) theServiceIsRunningWithoutAI() error {
	return tc.start(map[string]bool{ports.FlagAI: false})
}

func (tc *testContext) theAIProviderRespondsWith(doc *godog.DocString) error {
	tc.svc.gem.enqueue(http.StatusOK, doc.Content)
	return nil
}

func (tc *testContext) theAIProviderFailsWith(status int) error {
	tc.svc.gem.enqueue(status, "upstream unavailable")
	return nil
}

func (tc *testContext) theAIProviderShouldHaveBeenCalled(n int) error {
	if got := tc.svc.gem.callCount(); got != n {
		return fmt.Errorf("expected %d AI calls, got %d", n, got)
	}

	return nil
}

func (tc *testContext) iAmSignedInAs(user string) error {
	tc.userID = user
	return nil
}

func (tc *testContext) iAmNotSignedIn() error {
	tc.userID = ""
	return nil
}

func (tc *testContext) iSendRequest(method, path string) error {
	return tc.send(method, path, nil)
}

func (tc *testContext) iSendRequestWith(method, path string, doc *godog.DocString) error {
	return tc.send(method, path, []byte(tc.expand(doc.Content)))
}

func (tc *testContext) send(method, path string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, tc.svc.api.URL+tc.expand(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if tc.userID != "" {
		req.Header.Set("X-User-ID", tc.userID)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	tc.response = resp

	tc.responseBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	tc.decoded = nil
	if len(tc.responseBody) > 0 {
		_ = json.Unmarshal(tc.responseBody, &tc.decoded)
	}

	return nil
}

// expand replaces {{name}} placeholders with remembered values.
func (tc *testContext) expand(s string) string {
	for name, value := range tc.vars {
		s = strings.ReplaceAll(s, "{{"+name+"}}", value)
	}

	return s
}

// theResponseStatusShouldBe asserts the response status code.
func (tc *testContext) theResponseStatusShouldBe(expectedCode int) error {
	if tc.response == nil {
		return errors.New("no response received")
	}

	if tc.response.StatusCode != expectedCode {
		return fmt.Errorf("expected status %d, got %d. Body: %s",
			expectedCode, tc.response.StatusCode, string(tc.responseBody))
	}

	return nil
}

// field resolves a dotted path such as "items.0.suggestedRole" in the decoded body.
func (tc *testContext) field(path string) (any, error) {
	current := tc.decoded

	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, tc.responseBody)
			}

			current = value
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", key, path)
			}

			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %q", key, path)
		}
	}

	return current, nil
}

func (tc *testContext) theFieldShouldBeString(path, want string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}

	s, ok := got.(string)
	if !ok || s != tc.expand(want) {
		return fmt.Errorf("expected %q to be %q, got %v", path, tc.expand(want), got)
	}

	return nil
}

func (tc *testContext) theFieldShouldBeNumber(path, want string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}

	expected, err := strconv.ParseFloat(want, 64)
	if err != nil {
		return err
	}

	n, ok := got.(float64)
	if !ok || n != expected {
		return fmt.Errorf("expected %q to be %v, got %v", path, expected, got)
	}

	return nil
}

func (tc *testContext) theFieldShouldBeBool(path, want string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}

	b, ok := got.(bool)
	if !ok || strconv.FormatBool(b) != want {
		return fmt.Errorf("expected %q to be %s, got %v", path, want, got)
	}

	return nil
}

func (tc *testContext) theFieldShouldBeNull(path string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}

	if got != nil {
		return fmt.Errorf("expected %q to be null, got %v", path, got)
	}

	return nil
}

func (tc *testContext) theFieldShouldHaveEntries(path string, n int) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}

	switch v := got.(type) {
	case []any:
		if len(v) == n {
			return nil
		}
	case map[string]any:
		if len(v) == n {
			return nil
		}
	}

	return fmt.Errorf("expected %q to have %d entries, got %v", path, n, got)
}

// theResponseShouldContain asserts the response body contains the given text.
func (tc *testContext) theResponseShouldContain(text string) error {
	if tc.responseBody == nil {
		return errors.New("no response body")
	}

	if !strings.Contains(string(tc.responseBody), text) {
		return fmt.Errorf("response body does not contain %q.\nBody: %s", text, tc.responseBody)
	}

	return nil
}

func (tc *testContext) iRememberField(path, name string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}

	tc.vars[name] = fmt.Sprint(got)

	return nil
}

// TestFeatures runs the GoDog BDD test suite.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
