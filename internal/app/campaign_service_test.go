package app

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/xuri/excelize/v2"

	"aligncall/internal/model"
	"aligncall/internal/voice"
)

func leadWorkbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, ref, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type memBatches struct {
	batches []model.Batch
}

func (m *memBatches) Create(_ context.Context, b *model.Batch) error {
	b.ID = uint(len(m.batches) + 1)
	m.batches = append(m.batches, *b)
	return nil
}

func (m *memBatches) Delete(_ context.Context, id uint) error {
	for i := range m.batches {
		if m.batches[i].ID == id {
			m.batches = append(m.batches[:i], m.batches[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memBatches) GetByID(_ context.Context, id uint) (*model.Batch, error) {
	for i := range m.batches {
		if m.batches[i].ID == id {
			return &m.batches[i], nil
		}
	}
	return nil, nil
}

func (m *memBatches) List(context.Context, int) ([]model.Batch, error) {
	return m.batches, nil
}

// memCalls backs both the campaign and the dial service.
type memCalls struct {
	calls     map[uint]*model.Call
	next      uint
	createErr error
}

func newMemCalls() *memCalls { return &memCalls{calls: map[uint]*model.Call{}} }

func (m *memCalls) CreateForBatch(_ context.Context, calls []model.Call) ([]model.Call, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for i := range calls {
		m.next++
		calls[i].ID = m.next
		c := calls[i]
		m.calls[c.ID] = &c
	}
	return calls, nil
}

func (m *memCalls) ListByBatchID(_ context.Context, batchID uint) ([]model.Call, error) {
	var out []model.Call
	for id := uint(1); id <= m.next; id++ {
		if c, ok := m.calls[id]; ok && c.BatchID == batchID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCalls) GetByID(_ context.Context, id uint) (*model.Call, error) {
	c, ok := m.calls[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memCalls) MarkFailed(_ context.Context, id uint, reason string) error {
	m.calls[id].Status = model.CallStatusFailed
	m.calls[id].Error = reason
	return nil
}

func (m *memCalls) MarkRinging(_ context.Context, id uint, voiceCallID string) error {
	m.calls[id].Status = model.CallStatusRinging
	m.calls[id].VoiceCallID = &voiceCallID
	return nil
}

type recordingPublisher struct {
	jobs   []DialJob
	failAt int
}

func (p *recordingPublisher) Publish(_ context.Context, job any) error {
	if p.failAt > 0 && len(p.jobs)+1 == p.failAt {
		p.failAt = 0
		return errUnavailable
	}
	p.jobs = append(p.jobs, job.(DialJob))
	return nil
}

func threeLeads(t *testing.T) []byte {
	return leadWorkbook(t,
		[]any{"Name", "Email", "Phone"},
		[]any{"Asha Rao", "asha@example.com", "9876543210"},
		[]any{"Ravi", "ravi@example.com", "9876500000"},
		[]any{"Missing Phone", "x@example.com", ""},
		[]any{"Meera", "meera@example.com", "+91 99999 88888"},
	)
}

func TestUploadCreatesBatchAndQueuesDials(t *testing.T) {
	dir := t.TempDir()
	batches, calls, pub := &memBatches{}, newMemCalls(), &recordingPublisher{}
	svc := NewCampaignService(batches, calls, pub, dir, 2, nil)

	res, err := svc.Upload(context.Background(), UploadInput{OperatorID: 7, FileName: "leads.XLSX", Content: threeLeads(t)})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.BatchID != 1 || res.TotalLeads != 3 || res.SkippedRows != 1 || res.QueuedDials != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(res.SavedPath); err != nil {
		t.Errorf("saved file: %v", err)
	}
	if len(pub.jobs) != 2 || pub.jobs[0].CallID != 1 || pub.jobs[1].CallID != 2 {
		t.Errorf("jobs = %+v", pub.jobs)
	}
	if batches.batches[0].OperatorID != 7 || batches.batches[0].FileName != "leads.XLSX" {
		t.Errorf("batch = %+v", batches.batches[0])
	}

	listed, err := svc.BatchCalls(context.Background(), res.BatchID)
	if err != nil || len(listed) != 3 {
		t.Fatalf("calls=%v err=%v", listed, err)
	}
	for _, c := range listed {
		if c.Status != model.CallStatusPending {
			t.Errorf("call %d status = %s", c.ID, c.Status)
		}
	}
}

func TestUploadFailsCallWhenEnqueueFails(t *testing.T) {
	calls, pub := newMemCalls(), &recordingPublisher{failAt: 2}
	svc := NewCampaignService(&memBatches{}, calls, pub, t.TempDir(), 0, nil)

	res, err := svc.Upload(context.Background(), UploadInput{FileName: "a.xlsx", Content: threeLeads(t)})
	if err != nil {
		t.Fatal(err)
	}
	if res.QueuedDials != 2 {
		t.Errorf("queued = %d", res.QueuedDials)
	}
	if calls.calls[2].Status != model.CallStatusFailed || calls.calls[2].Error == "" {
		t.Errorf("call 2 = %+v", calls.calls[2])
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc := NewCampaignService(&memBatches{}, newMemCalls(), &recordingPublisher{}, t.TempDir(), 0, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, UploadInput{FileName: "leads.csv", Content: []byte("a,b")}); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("csv: %v", err)
	}
	missing := leadWorkbook(t, []any{"Name", "Phone"}, []any{"Asha", "9876543210"})
	if _, err := svc.Upload(ctx, UploadInput{FileName: "a.xlsx", Content: missing}); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("missing columns: %v", err)
	}
	empty := leadWorkbook(t, []any{"Name", "Email", "Phone"}, []any{"", "", ""})
	if _, err := svc.Upload(ctx, UploadInput{FileName: "a.xlsx", Content: empty}); !errors.Is(err, ErrNoLeads) {
		t.Errorf("no leads: %v", err)
	}
}

func TestUploadCleansUpWhenCallsCannotBeStored(t *testing.T) {
	dir := t.TempDir()
	batches := &memBatches{}
	calls := newMemCalls()
	calls.createErr = errors.New("deadlock found")
	pub := &recordingPublisher{}
	svc := NewCampaignService(batches, calls, pub, dir, 0, nil)

	if _, err := svc.Upload(context.Background(), UploadInput{FileName: "a.xlsx", Content: threeLeads(t)}); !errors.Is(err, calls.createErr) {
		t.Fatalf("err = %v", err)
	}
	if len(batches.batches) != 0 {
		t.Errorf("orphan batches = %+v", batches.batches)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir still holds %d files", len(entries))
	}
	if len(pub.jobs) != 0 {
		t.Errorf("jobs = %+v", pub.jobs)
	}
}

func TestBatchCallsNotFound(t *testing.T) {
	svc := NewCampaignService(&memBatches{}, newMemCalls(), &recordingPublisher{}, t.TempDir(), 0, nil)
	if _, err := svc.BatchCalls(context.Background(), 42); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("err = %v", err)
	}
}

type fakeDialer struct {
	placed   []string
	metadata map[string]any
	err      error
}

func (f *fakeDialer) Dial(_ context.Context, phone, name string, metadata map[string]any) (*voice.Call, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, phone)
	f.metadata = metadata
	return &voice.Call{ID: "vapi-" + name}, nil
}

func TestDialMarksRinging(t *testing.T) {
	calls := newMemCalls()
	_, _ = calls.CreateForBatch(context.Background(), []model.Call{{
		BatchID: 3, Status: model.CallStatusPending, Lead: model.Lead{Name: "Asha", Phone: "+919876543210"},
	}})
	dialer := &fakeDialer{}
	svc := NewDialService(calls, dialer, nil)

	if err := svc.Dial(context.Background(), DialJob{CallID: 1}); err != nil {
		t.Fatal(err)
	}
	c := calls.calls[1]
	if c.Status != model.CallStatusRinging || c.VoiceCallID == nil || *c.VoiceCallID != "vapi-Asha" {
		t.Errorf("call = %+v", c)
	}
	if dialer.metadata["batch_id"] != uint(3) {
		t.Errorf("metadata = %v", dialer.metadata)
	}

	if err := svc.Dial(context.Background(), DialJob{CallID: 1}); err != nil {
		t.Fatal(err)
	}
	if len(dialer.placed) != 1 {
		t.Error("redelivered job must not dial again")
	}
}

func TestDialFailureFailsCall(t *testing.T) {
	calls := newMemCalls()
	_, _ = calls.CreateForBatch(context.Background(), []model.Call{{Status: model.CallStatusPending}})
	svc := NewDialService(calls, &fakeDialer{err: errors.New("invalid number")}, nil)

	if err := svc.Dial(context.Background(), DialJob{CallID: 1}); err != nil {
		t.Fatal(err)
	}
	if calls.calls[1].Status != model.CallStatusFailed || calls.calls[1].Error != "invalid number" {
		t.Errorf("call = %+v", calls.calls[1])
	}
	if err := svc.Dial(context.Background(), DialJob{CallID: 99}); err != nil {
		t.Errorf("missing call: %v", err)
	}
}
