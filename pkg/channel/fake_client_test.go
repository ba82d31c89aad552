package channel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// fakeClient records invoked actions and plays back scripted responses.
type fakeClient struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(action string, params map[string]any) (*onebot.ActionResponse, error)

	format        string
	reportSelf    bool
	reportOffline bool
	lastErr       string
}

type fakeCall struct {
	Action string
	Params map[string]any
}

func newFakeClient() *fakeClient {
	return &fakeClient{format: config.FormatArray}
}

func okResponse(messageID string) *onebot.ActionResponse {
	data, _ := json.Marshal(map[string]string{"message_id": messageID})
	return &onebot.ActionResponse{Status: "ok", Data: data}
}

func (f *fakeClient) Invoke(ctx context.Context, action string, params map[string]any) (*onebot.ActionResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Action: action, Params: params})
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(action, params)
	}
	return okResponse("1"), nil
}

func (f *fakeClient) Stop() {}

func (f *fakeClient) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *fakeClient) Format() string { return f.format }

func (f *fakeClient) ReportSelfMessage() bool { return f.reportSelf }

func (f *fakeClient) ReportOfflineMessage() bool { return f.reportOffline }

func (f *fakeClient) recorded() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeClient) lastCall() (fakeCall, bool) {
	calls := f.recorded()
	if len(calls) == 0 {
		return fakeCall{}, false
	}
	return calls[len(calls)-1], true
}
