package core_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/adapters/store"
	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/metrics"
)

// Shared across all tests in the package; promauto forbids re-registration.
var testMetrics = metrics.New()

type fakeOracle struct {
	matched string
	err     error
	calls   int32
}

func (o *fakeOracle) DetectPattern(ctx context.Context, msgs []core.Message, account *core.Account, candidates []core.Rule) (string, error) {
	atomic.AddInt32(&o.calls, 1)
	return o.matched, o.err
}

type fakeFetcher struct {
	threads []core.Thread
	err     error
	calls   int32
}

func (f *fakeFetcher) FetchThreads(ctx context.Context, accessToken, sender string, max int64) ([]core.Thread, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.threads, f.err
}

type fakeCredentials struct {
	token string
	err   error
}

func (c *fakeCredentials) AccessToken(ctx context.Context, account *core.Account) (string, error) {
	return c.token, c.err
}

func onewayThreads(sender string, count int) []core.Thread {
	var threads []core.Thread
	for i := 0; i < count; i++ {
		threads = append(threads, core.Thread{
			ID: "t" + string(rune('0'+i)),
			Messages: []core.Message{
				{ID: "m" + string(rune('0'+i)), From: sender, Subject: "Weekly digest", Body: "content"},
			},
		})
	}
	return threads
}

func newEnv(t *testing.T) (*store.MemoryStore, *fakeOracle, *fakeFetcher) {
	t.Helper()
	st := store.NewMemoryStore(zap.NewNop())
	st.AddAccount(core.Account{ID: "acc-1", Email: "owner@example.com", RefreshToken: "refresh"})
	st.AddRule(core.Rule{AccountID: "acc-1", Name: "Newsletters", Instructions: "Weekly digests and news", Enabled: true})
	st.AddRule(core.Rule{AccountID: "acc-1", Name: "Receipts", Instructions: "Order confirmations", Enabled: true})
	return st, &fakeOracle{}, &fakeFetcher{}
}

func newService(st core.Store, oracle core.PatternOracle, fetcher core.ThreadFetcher, creds core.CredentialProvider) *core.PatternService {
	return core.NewPatternService(oracle, fetcher, creds, st, zap.NewNop(), testMetrics, time.Minute)
}

func TestAnalyzeSenderRecordsPattern(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	oracle.matched = "Newsletters"
	fetcher.threads = onewayThreads("news@example.com", 4)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	err := svc.AnalyzeSender(context.Background(), "acc-1", "The News <NEWS@example.com>")
	require.NoError(t, err)

	group := st.GroupForRule("acc-1", "Newsletters")
	require.NotNil(t, group)
	assert.Equal(t, "Newsletters", group.Name)

	items := st.ItemsForGroup(group.ID)
	require.Len(t, items, 1)
	assert.Equal(t, core.GroupItemFrom, items[0].Type)
	assert.Equal(t, "news@example.com", items[0].Value)
	assert.False(t, items[0].Exclude)

	check, err := st.GetSenderCheck(context.Background(), "acc-1", "news@example.com")
	require.NoError(t, err)
	require.NotNil(t, check)
	assert.True(t, check.Analyzed)
}

func TestAnalyzeSenderNoMatchStillClosesOut(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	oracle.matched = ""
	fetcher.threads = onewayThreads("news@example.com", 3)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Equal(t, 0, st.GroupCount())
	check, _ := st.GetSenderCheck(context.Background(), "acc-1", "news@example.com")
	require.NotNil(t, check)
	assert.True(t, check.Analyzed)
}

func TestAnalyzeSenderAlreadyAnalyzedSkipsNetwork(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	require.NoError(t, st.UpsertSenderCheck(context.Background(), &core.SenderCheck{
		AccountID:      "acc-1",
		SenderEmail:    "news@example.com",
		Analyzed:       true,
		LastAnalyzedAt: time.Now(),
	}))

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&fetcher.calls))
	assert.Zero(t, atomic.LoadInt32(&oracle.calls))
}

func TestAnalyzeSenderConversationDisqualifies(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	fetcher.threads = append(onewayThreads("news@example.com", 9), core.Thread{
		ID: "t-dialogue",
		Messages: []core.Message{
			{From: "news@example.com"},
			{From: "owner@example.com"},
		},
	})

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderTooFewMessages(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	fetcher.threads = onewayThreads("news@example.com", 2)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderNoThreads(t *testing.T) {
	st, oracle, fetcher := newEnv(t)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderMissingAccount(t *testing.T) {
	st, oracle, fetcher := newEnv(t)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-unknown", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&fetcher.calls))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderNoCredentialsLeavesSenderEligible(t *testing.T) {
	st, oracle, fetcher := newEnv(t)

	svc := newService(st, oracle, fetcher, &fakeCredentials{err: core.ErrNoCredentials})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&fetcher.calls))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderFetchErrorPropagates(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	fetcher.err = errors.New("gmail unavailable")

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	err := svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com")
	require.Error(t, err)

	assert.Zero(t, atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderOracleErrorPropagates(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	oracle.err = errors.New("model timeout")
	fetcher.threads = onewayThreads("news@example.com", 3)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.Error(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))
	assert.Equal(t, 0, st.SenderCheckCount())
}

func TestAnalyzeSenderNoCandidateRulesSkipsOracle(t *testing.T) {
	st := store.NewMemoryStore(zap.NewNop())
	st.AddAccount(core.Account{ID: "acc-1", Email: "owner@example.com", RefreshToken: "refresh"})
	oracle := &fakeOracle{}
	fetcher := &fakeFetcher{threads: onewayThreads("news@example.com", 3)}

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))

	assert.Zero(t, atomic.LoadInt32(&oracle.calls))
	check, _ := st.GetSenderCheck(context.Background(), "acc-1", "news@example.com")
	require.NotNil(t, check)
	assert.True(t, check.Analyzed)
}

func TestAnalyzeSenderUnparseableAddress(t *testing.T) {
	st, oracle, fetcher := newEnv(t)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})
	require.Error(t, svc.AnalyzeSender(context.Background(), "acc-1", "not an address"))
}

func TestAnalyzeSenderConcurrentDuplicatesConverge(t *testing.T) {
	st, oracle, fetcher := newEnv(t)
	oracle.matched = "Newsletters"
	fetcher.threads = onewayThreads("news@example.com", 5)

	svc := newService(st, oracle, fetcher, &fakeCredentials{token: "token"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.AnalyzeSender(context.Background(), "acc-1", "news@example.com"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, st.SenderCheckCount())
	assert.Equal(t, 1, st.GroupCount())
	group := st.GroupForRule("acc-1", "Newsletters")
	require.NotNil(t, group)
	assert.Len(t, st.ItemsForGroup(group.ID), 1)
}
