package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
	"github.com/bdobrica/Kaimu/internal/kaimu/respond"
	"github.com/bdobrica/Kaimu/internal/kaimu/schedule"
	"github.com/bdobrica/Kaimu/internal/kaimu/webhook"
)

type fakeResponder struct {
	mu    sync.Mutex
	reqs  []respond.Request
	reply string
}

func (f *fakeResponder) Respond(_ context.Context, req respond.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply
}

type memScheduleStore struct {
	mu   sync.Mutex
	docs map[string]map[string]*schedule.Document
}

func newMemScheduleStore() *memScheduleStore {
	return &memScheduleStore{docs: make(map[string]map[string]*schedule.Document)}
}

func (m *memScheduleStore) Save(_ context.Context, source string, doc *schedule.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[source] == nil {
		m.docs[source] = make(map[string]*schedule.Document)
	}
	m.docs[source][doc.Period] = doc
	return nil
}

func (m *memScheduleStore) Lookup(_ context.Context, source string, ref time.Time) (*schedule.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for period, doc := range m.docs[source] {
		if schedule.WithinPeriod(period, ref) {
			return doc, nil
		}
	}
	return nil, nil
}

type fakeReplier struct {
	mu       sync.Mutex
	replies  []string
	pushes   []string
	replyErr error
}

func (f *fakeReplier) Reply(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeReplier) Push(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, text)
	return nil
}

func (f *fakeReplier) lastReply(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		t.Fatal("no reply delivered")
	}
	return f.replies[len(f.replies)-1]
}

// currentWeekNotice builds a parseable notice whose period covers ref.
func currentWeekNotice(ref time.Time) string {
	start := ref.AddDate(0, 0, -1)
	end := ref.AddDate(0, 0, 5)
	period := start.Format("1/2") + "-" + end.Format("1/2")
	return `34주차 ` + period + ` 훈련 공지
이번 주도 화이팅입니다! 웜업 2km 조깅으로 몸을 풀고 인터벌 본훈련 후 쿨다운까지 진행합니다.

풀코스
A SUB 3:00
1200 x 6 @ 03:50~03:45 /km
휴식: 200m 조깅

B SUB 3:30
800 x 4 @ 04:30 /km
`
}

func textEvent(text string) webhook.Event {
	return webhook.Event{
		Type:       webhook.EventText,
		ReplyToken: "rt-1",
		Identity:   "U1",
		GroupID:    "G1",
		Text:       text,
	}
}

func newTestDispatcher(r *fakeResponder, rep *fakeReplier) (*Dispatcher, *memScheduleStore) {
	store := newMemScheduleStore()
	d := NewDispatcher(DispatcherConfig{
		Responder: r,
		Schedules: store,
		Replier:   rep,
		Location:  time.UTC,
	})
	return d, store
}

func TestDispatch_ScheduleNoticeThenGroupSelection(t *testing.T) {
	responder := &fakeResponder{reply: "chat"}
	replier := &fakeReplier{}
	d, _ := newTestDispatcher(responder, replier)
	ctx := context.Background()

	ref := time.Now().UTC()
	d.Dispatch(ctx, textEvent(currentWeekNotice(ref)))

	confirmation := replier.lastReply(t)
	if !strings.Contains(confirmation, "34주차") || !strings.Contains(confirmation, "A, B") {
		t.Fatalf("confirmation = %q", confirmation)
	}
	if len(responder.reqs) != 0 {
		t.Fatalf("schedule notice reached the chat path: %+v", responder.reqs)
	}

	d.Dispatch(ctx, textEvent("A조"))
	summary := replier.lastReply(t)
	for _, want := range []string{"A조", "1200m", "46초", "45초", "200m 조깅"} {
		if !strings.Contains(summary, want) {
			t.Errorf("group summary missing %q in:\n%s", want, summary)
		}
	}

	d.Dispatch(ctx, textEvent("Z조"))
	if miss := replier.lastReply(t); !strings.Contains(miss, "Z조가 없어요") {
		t.Errorf("missing-group reply = %q", miss)
	}
}

func TestDispatch_GroupSelectionWithoutCacheFallsThroughToChat(t *testing.T) {
	responder := &fakeResponder{reply: "아직 이번 주 훈련표가 없어요."}
	replier := &fakeReplier{}
	d, _ := newTestDispatcher(responder, replier)

	d.Dispatch(context.Background(), textEvent("A조"))

	if len(responder.reqs) != 1 {
		t.Fatalf("chat path invoked %d times, want 1", len(responder.reqs))
	}
	if replier.lastReply(t) != "아직 이번 주 훈련표가 없어요." {
		t.Errorf("reply = %q", replier.lastReply(t))
	}
}

func TestDispatch_ScheduleLikeButUnparseableGoesToChat(t *testing.T) {
	responder := &fakeResponder{reply: "chat"}
	replier := &fakeReplier{}
	d, _ := newTestDispatcher(responder, replier)

	// Passes the keyword gate but has no full-course section.
	text := "이번 주차 훈련 공지입니다. 인터벌 없이 다 같이 조깅만 합니다. " +
		strings.Repeat("컨디션 조절 잘 하세요. ", 10)
	d.Dispatch(context.Background(), textEvent(text))

	if len(responder.reqs) != 1 {
		t.Fatalf("chat path invoked %d times, want 1", len(responder.reqs))
	}
	if responder.reqs[0].Message != text {
		t.Errorf("message not forwarded verbatim")
	}
}

func TestDispatch_StructuredReplyRendered(t *testing.T) {
	structured := "홍대 근처 추천이에요.\n```json\n" +
		`[{"name": "런너스 키친", "rating": 4.5, "price": "만원대", "highlight": "파스타", "mapUrl": "https://map.naver.com/p/1"}]` +
		"\n```"
	responder := &fakeResponder{reply: structured}
	replier := &fakeReplier{}
	d, _ := newTestDispatcher(responder, replier)

	d.Dispatch(context.Background(), textEvent("맛집 추천해줘"))

	out := replier.lastReply(t)
	for _, want := range []string{"홍대 근처 추천이에요.", "📍 런너스 키친", "4.5", "만원대", "https://map.naver.com/p/1"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered reply missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "```") {
		t.Errorf("fence leaked into rendered reply:\n%s", out)
	}
}

func TestDispatch_ReplyFailureFallsBackToPush(t *testing.T) {
	responder := &fakeResponder{reply: "안녕하세요"}
	replier := &fakeReplier{replyErr: errors.New("reply token expired")}
	d, _ := newTestDispatcher(responder, replier)

	d.Dispatch(context.Background(), textEvent("안녕"))

	replier.mu.Lock()
	defer replier.mu.Unlock()
	if len(replier.pushes) != 1 || replier.pushes[0] != "안녕하세요" {
		t.Fatalf("pushes = %v", replier.pushes)
	}
}

func TestDispatch_LocationBecomesGroundedChat(t *testing.T) {
	responder := &fakeResponder{reply: "좋은 코스네요!"}
	replier := &fakeReplier{}
	d, _ := newTestDispatcher(responder, replier)

	d.Dispatch(context.Background(), webhook.Event{
		Type:       webhook.EventLocation,
		ReplyToken: "rt-1",
		Identity:   "U1",
		Location: &webhook.Location{
			Title: "한강공원", Address: "서울 영등포구", Latitude: 37.52, Longitude: 126.93,
		},
	})

	if len(responder.reqs) != 1 {
		t.Fatalf("chat path invoked %d times, want 1", len(responder.reqs))
	}
	if !strings.Contains(responder.reqs[0].Grounding, "한강공원") {
		t.Errorf("grounding = %q", responder.reqs[0].Grounding)
	}
}

type fakeImages struct{}

func (fakeImages) Fetch(_ context.Context, messageID string) (provider.Image, error) {
	return provider.Image{MIME: "image/jpeg", Data: []byte(messageID)}, nil
}

func TestDispatch_ImageBatchFlushesAsPush(t *testing.T) {
	responder := &fakeResponder{reply: "기록 인증 확인했어요!"}
	replier := &fakeReplier{}
	store := newMemScheduleStore()
	d := NewDispatcher(DispatcherConfig{
		Responder:  responder,
		Schedules:  store,
		Replier:    replier,
		Images:     fakeImages{},
		BatchQuiet: 20 * time.Millisecond,
		Location:   time.UTC,
	})
	ctx := context.Background()

	d.Dispatch(ctx, webhook.Event{Type: webhook.EventImage, Identity: "U1", MessageID: "m1"})
	d.Dispatch(ctx, webhook.Event{Type: webhook.EventImage, Identity: "U1", MessageID: "m2"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		replier.mu.Lock()
		n := len(replier.pushes)
		replier.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for batch flush")
		}
		time.Sleep(10 * time.Millisecond)
	}

	responder.mu.Lock()
	defer responder.mu.Unlock()
	if len(responder.reqs) != 1 {
		t.Fatalf("responder invoked %d times, want 1", len(responder.reqs))
	}
	if len(responder.reqs[0].Images) != 2 {
		t.Errorf("batched %d images, want 2", len(responder.reqs[0].Images))
	}
}
