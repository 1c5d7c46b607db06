package upstream

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ksutools/portalgate/internal/proxy"
	"github.com/ksutools/portalgate/internal/testutil"
)

// scriptFunc adapts a function into a proxy.Executor for scripting responses
// that depend on the full descriptor, not just the URL.
type scriptFunc func(*proxy.Descriptor) *proxy.Envelope

func (f scriptFunc) Execute(_ context.Context, d *proxy.Descriptor) *proxy.Envelope {
	return f(d)
}

func testConfig() Config {
	return Config{
		UserInfoURL:     "https://portal.test/user",
		PersonalInfoURL: "https://portal.test/personal",
		GradesURL:       "https://portal.test/grades?project=1",
		CalendarURL:     "https://portal.test/calendar",
		Mode:            proxy.ModeLocal,
		PortalReferer:   "https://portal.test/main.html",
		InfoTimeout:     5 * time.Second,
		FetchTimeout:    5 * time.Second,
	}
}

func newTestClient(t *testing.T, exec proxy.Executor) *Client {
	t.Helper()
	router := proxy.NewRouter(exec, nil, &testutil.DummyLogger{})
	return NewClient(router, testConfig(), &testutil.DummyLogger{})
}

func wantDomainError(t *testing.T, err error) *Error {
	t.Helper()
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *upstream.Error, got %T: %v", err, err)
	}
	if ue.Kind != KindDomain {
		t.Fatalf("expected domain error, got kind %q", ue.Kind)
	}
	return ue
}

func TestClient_Identity(t *testing.T) {
	t.Parallel()

	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/user": testutil.JSONEnvelope(`{
			"code": 0,
			"data": {
				"username": "2023001",
				"attributes": {
					"userName": "张三",
					"userUid": "uid-42",
					"userId": "id-42",
					"organizationName": "计算机学院",
					"identityTypeName": "本科生"
				}
			}
		}`),
	}}

	id, err := newTestClient(t, exec).Identity(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.Username != "2023001" || id.UserName != "张三" || id.UserUID != "uid-42" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.OrganizationName != "计算机学院" || id.IdentityTypeName != "本科生" {
		t.Errorf("unexpected identity attributes: %+v", id)
	}

	// The request must carry the authenticated header set.
	req := exec.Requests[0]
	if req.Headers["x-id-token"] != "tok" {
		t.Errorf("x-id-token = %q, want %q", req.Headers["x-id-token"], "tok")
	}
	if req.Headers["referer"] != "https://portal.test/main.html" {
		t.Errorf("referer = %q", req.Headers["referer"])
	}
	if req.Headers["x-device-info"] != "PC" || req.Headers["x-terminal-info"] != "PC" {
		t.Errorf("device headers missing: %v", req.Headers)
	}
}

func TestClient_Identity_ServiceRejection(t *testing.T) {
	t.Parallel()

	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/user": testutil.JSONEnvelope(`{"code": 50014, "message": "token expired"}`),
	}}

	_, err := newTestClient(t, exec).Identity(context.Background(), "stale")
	ue := wantDomainError(t, err)
	if ue.Code != 50014 || ue.Message != "token expired" {
		t.Errorf("unexpected error: %+v", ue)
	}
}

func TestClient_Identity_MissingDataIsRejection(t *testing.T) {
	t.Parallel()

	// code 0 with no data is still a failure, never a zero-value identity.
	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/user": testutil.JSONEnvelope(`{"code": 0}`),
	}}

	_, err := newTestClient(t, exec).Identity(context.Background(), "tok")
	wantDomainError(t, err)
}

func TestClient_Profile(t *testing.T) {
	t.Parallel()

	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/personal": testutil.JSONEnvelope(`{
			"code": 0,
			"data": {"cardBalance": "12.50", "bookLoanCount": 3, "researchCount": 1}
		}`),
	}}

	p, err := newTestClient(t, exec).Profile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.CardBalance != "12.50" || p.BookLoanCount != 3 || p.ResearchCount != 1 {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestClient_Grades(t *testing.T) {
	t.Parallel()

	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/grades?project=1": testutil.JSONEnvelope(`{
			"success": true,
			"code": 200,
			"data": {
				"totalCredit": 24.5,
				"gpa": "3.82",
				"ga": "88.4",
				"totalScore": 531,
				"semesterGradeList": [
					{"semester": "2025-2026-1", "gradeList": [
						{"courseName": "操作系统", "credit": 4, "gp": 4.0, "score": 92, "scoreText": "92"}
					]}
				]
			}
		}`),
	}}

	g, err := newTestClient(t, exec).Grades(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Grades: %v", err)
	}
	if g.GPA != "3.82" || g.TotalCredit != 24.5 {
		t.Errorf("unexpected grades summary: %+v", g)
	}
	if len(g.SemesterGradeList) != 1 || len(g.SemesterGradeList[0].GradeList) != 1 {
		t.Fatalf("unexpected semester grouping: %+v", g.SemesterGradeList)
	}
	if got := g.SemesterGradeList[0].GradeList[0].CourseName; got != "操作系统" {
		t.Errorf("course name = %q", got)
	}
}

func TestClient_Grades_EnvelopeFailure(t *testing.T) {
	t.Parallel()

	// The grades service signals failure with success=false even under a
	// 200 status.
	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/grades?project=1": testutil.JSONEnvelope(`{"success": false, "code": 401, "msg": "请先登录"}`),
	}}

	_, err := newTestClient(t, exec).Grades(context.Background(), "tok")
	ue := wantDomainError(t, err)
	if ue.Code != 401 || ue.Message != "请先登录" {
		t.Errorf("unexpected error: %+v", ue)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()

	exec := &testutil.DummyExecutor{Fail: true}

	_, err := newTestClient(t, exec).Identity(context.Background(), "tok")
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *upstream.Error, got %T: %v", err, err)
	}
	if ue.Kind != KindTransport {
		t.Errorf("kind = %q, want %q", ue.Kind, KindTransport)
	}
	if ue.Message != "dummy transport failure" {
		t.Errorf("message = %q", ue.Message)
	}
}

func TestClient_DecodeFailureCarriesBoundedPreview(t *testing.T) {
	t.Parallel()

	long := "<html>" + strings.Repeat("x", 400)
	exec := &testutil.DummyExecutor{Responses: map[string]*proxy.Envelope{
		"https://portal.test/user": {Status: 502, Body: long},
	}}

	_, err := newTestClient(t, exec).Identity(context.Background(), "tok")
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *upstream.Error, got %T: %v", err, err)
	}
	if ue.Kind != KindDecode {
		t.Errorf("kind = %q, want %q", ue.Kind, KindDecode)
	}
	if ue.Status != 502 {
		t.Errorf("status = %d, want 502", ue.Status)
	}
	if len(ue.Preview) != previewLimit {
		t.Errorf("preview length = %d, want %d", len(ue.Preview), previewLimit)
	}
	if !strings.HasPrefix(ue.Preview, "<html>") {
		t.Errorf("preview lost body prefix: %q", ue.Preview[:20])
	}
}

func TestClient_CalendarMonth(t *testing.T) {
	t.Parallel()

	var got *proxy.Descriptor
	exec := scriptFunc(func(d *proxy.Descriptor) *proxy.Envelope {
		got = d
		return testutil.JSONEnvelope(`{
			"code": 0,
			"data": [
				{"xnxq": "2025-2026-1", "ny": "2026年01月", "zc": "18", "xqj": "一", "rq": "2026-01-05", "rc": null}
			]
		}`)
	})

	days, err := newTestClient(t, exec).CalendarMonth(context.Background(), "tok", "2026年01月")
	if err != nil {
		t.Fatalf("CalendarMonth: %v", err)
	}
	if len(days) != 1 || days[0].Rq != "2026-01-05" {
		t.Fatalf("unexpected days: %+v", days)
	}

	u, err := url.Parse(got.URL)
	if err != nil {
		t.Fatalf("parsing request url: %v", err)
	}
	q := u.Query()
	if q.Get("ny") != "2026年01月" {
		t.Errorf("ny = %q", q.Get("ny"))
	}
	if q.Get("random_number") == "" {
		t.Error("random_number missing from query")
	}

	// The calendar endpoint gets only the credential header.
	if len(got.Headers) != 1 || got.Headers["x-id-token"] != "tok" {
		t.Errorf("unexpected headers: %v", got.Headers)
	}
}

func TestClient_CalendarMonth_EmptyMonth(t *testing.T) {
	t.Parallel()

	exec := scriptFunc(func(_ *proxy.Descriptor) *proxy.Envelope {
		return testutil.JSONEnvelope(`{"code": 0, "data": null}`)
	})

	days, err := newTestClient(t, exec).CalendarMonth(context.Background(), "tok", "2026年02月")
	if err != nil {
		t.Fatalf("CalendarMonth: %v", err)
	}
	if days == nil || len(days) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", days)
	}
}

func TestClient_BaseHeadersIsPure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &testutil.DummyExecutor{})
	a := c.baseHeaders("tok")
	b := c.baseHeaders("tok")
	if len(a) != len(b) {
		t.Fatalf("header sets differ in size: %d vs %d", len(a), len(b))
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("header %q differs: %q vs %q", k, v, b[k])
		}
	}
	// Mutating one call's map must not leak into the next.
	a["x-id-token"] = "mutated"
	if c.baseHeaders("tok")["x-id-token"] != "tok" {
		t.Error("baseHeaders shares state between calls")
	}
}

func TestCalendarDay_WeekText(t *testing.T) {
	t.Parallel()

	week := func(s string) *string { return &s }
	cases := []struct {
		zc   *string
		want string
	}{
		{nil, "假期"},
		{week("0"), "准备周"},
		{week("5"), "第5周"},
		{week("18"), "第18周"},
	}
	for _, c := range cases {
		if got := (CalendarDay{Zc: c.zc}).WeekText(); got != c.want {
			t.Errorf("WeekText(%v) = %q, want %q", c.zc, got, c.want)
		}
	}
}

func TestFormatYearMonth(t *testing.T) {
	t.Parallel()

	jan := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	if got := FormatYearMonth(jan); got != "2026年01月" {
		t.Errorf("FormatYearMonth = %q", got)
	}
	nov := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	if got := FormatYearMonth(nov); got != "2025年11月" {
		t.Errorf("FormatYearMonth = %q", got)
	}
}
