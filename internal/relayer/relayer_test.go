package relayer_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"commitvault/internal/deadletter"
	"commitvault/internal/dispatch"
	"commitvault/internal/failure"
	"commitvault/internal/gateway"
	"commitvault/internal/ledger"
	lt "commitvault/internal/ledger/ledgertest"
	"commitvault/internal/mock"
	"commitvault/internal/relayer"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type harness struct {
	f       *lt.Fixture
	relayer *relayer.Relayer
}

func tokenAuth(t *testing.T) *dispatch.TokenAuthenticator {
	t.Helper()
	a, err := dispatch.NewTokenAuthenticator(strings.Repeat("s", 32), "commitvault")
	require.NoError(t, err)
	return a
}

func newHarness(t *testing.T, cfg relayer.Config) *harness {
	t.Helper()
	f := lt.New(t)
	auth := tokenAuth(t)
	d := dispatch.New(auth, dispatch.DefaultAllowList(), f.Ledger, gateway.NewAddressCredential(lt.Owner))
	return &harness{f: f, relayer: relayer.New(f.Ledger, d, auth, cfg)}
}

func TestRedemptionScenario(t *testing.T) {
	h := newHarness(t, relayer.Config{})
	ctx := context.Background()
	id, tok := h.f.Vault(t)

	out, err := h.relayer.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, relayer.Outcome{VaultID: id, Action: relayer.ActionNone}, out)

	h.f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveRedemption))

	out, err = h.relayer.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, relayer.ActionRedeem, out.Action)
	assert.NotEmpty(t, out.TxRef)
	assert.True(t, out.Resolved)

	info, err := h.f.Ledger.VaultInfo(ctx, id)
	require.NoError(t, err)
	assert.True(t, info.IsRedeemed)
	owner, err := h.f.Ledger.OwnerOf(tok)
	require.NoError(t, err)
	assert.Equal(t, lt.Bob, owner)

	out, err = h.relayer.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, relayer.ActionNone, out.Action)
	assert.True(t, out.Resolved)
}

func TestDissolutionScenario(t *testing.T) {
	h := newHarness(t, relayer.Config{})
	ctx := context.Background()
	id, tok := h.f.Vault(t)

	h.f.Submit(t, lt.Alice, lt.VaultCall(id, gateway.OpApproveDissolution))
	out, err := h.relayer.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, relayer.ActionNone, out.Action)
	assert.False(t, out.Resolved)

	h.f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveDissolution))
	out, err = h.relayer.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, relayer.ActionDissolve, out.Action)

	info, err := h.f.Ledger.VaultInfo(ctx, id)
	require.NoError(t, err)
	assert.True(t, info.IsDissolved)
	owner, err := h.f.Ledger.OwnerOf(tok)
	require.NoError(t, err)
	assert.Equal(t, lt.Alice, owner)
}

func TestRedemptionPreferredOverDissolution(t *testing.T) {
	h := newHarness(t, relayer.Config{})
	id, _ := h.f.Vault(t)

	h.f.Submit(t, lt.Alice, lt.VaultCall(id, gateway.OpApproveDissolution))
	h.f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveDissolution))
	h.f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveRedemption))

	out, err := h.relayer.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, relayer.ActionRedeem, out.Action)
}

func TestUnknownVault(t *testing.T) {
	h := newHarness(t, relayer.Config{})
	_, err := h.relayer.Check(context.Background(), common.HexToAddress("0xdead"))
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

// staleReader answers with a snapshot taken before the vault was finalized.
type staleReader struct {
	gateway.Reader
	info vault.Info
}

func (s staleReader) VaultInfo(context.Context, common.Address) (vault.Info, error) {
	return s.info, nil
}

func TestLostRaceIsResolved(t *testing.T) {
	f := lt.New(t)
	ctx := context.Background()
	id, _ := f.Vault(t)
	f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveRedemption))

	stale, err := f.Ledger.VaultInfo(ctx, id)
	require.NoError(t, err)
	f.Submit(t, lt.Carol, lt.VaultCall(id, gateway.OpExecuteRedemption))

	auth := tokenAuth(t)
	d := dispatch.New(auth, dispatch.DefaultAllowList(), f.Ledger, gateway.NewAddressCredential(lt.Owner))
	r := relayer.New(staleReader{info: stale}, d, auth, relayer.Config{})

	seq := f.Ledger.Seq()
	out, err := r.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, relayer.ActionNone, out.Action)
	assert.True(t, out.Resolved)
	assert.Equal(t, seq, f.Ledger.Seq())
}

func TestSubmissionFailureIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	ctx := context.Background()
	id := common.HexToAddress("0xcc")

	gw.EXPECT().VaultInfo(gomock.Any(), id).Return(vault.Info{
		VaultID: id, PartyA: lt.Alice, PartyB: lt.Bob, RedeemApprovalB: true,
	}, nil).Times(1)
	gw.EXPECT().Simulate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)
	gw.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("connection reset")).Times(1)

	auth := tokenAuth(t)
	d := dispatch.New(auth, dispatch.DefaultAllowList(), gw, gateway.NewAddressCredential(lt.Owner))
	now := time.Unix(1_700_000_000, 0)
	r := relayer.New(gw, d, auth, relayer.Config{Cooldown: time.Minute}, relayer.WithClock(func() time.Time { return now }))

	r.Watch(id)
	r.Sweep(ctx)
	r.Sweep(ctx)
	assert.Equal(t, 1, r.Watched())
}

func TestCancelledCallerDoesNotCancelSharedCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	id := common.HexToAddress("0xcc")
	entered := make(chan struct{})
	release := make(chan struct{})
	readErr := make(chan error, 1)

	gw.EXPECT().VaultInfo(gomock.Any(), id).DoAndReturn(func(ctx context.Context, _ common.Address) (vault.Info, error) {
		close(entered)
		<-release
		readErr <- ctx.Err()
		return vault.Info{VaultID: id, PartyA: lt.Alice, PartyB: lt.Bob}, nil
	}).Times(1)

	auth := tokenAuth(t)
	d := dispatch.New(auth, dispatch.DefaultAllowList(), gw, gateway.NewAddressCredential(lt.Owner))
	r := relayer.New(gw, d, auth, relayer.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	checkErr := make(chan error, 1)
	go func() {
		_, err := r.Check(ctx, id)
		checkErr <- err
	}()
	<-entered

	cancel()
	assert.ErrorIs(t, <-checkErr, context.Canceled)

	close(release)
	assert.NoError(t, <-readErr)
}

func TestSubmissionFailureReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	id := common.HexToAddress("0xcc")

	gw.EXPECT().VaultInfo(gomock.Any(), id).Return(vault.Info{
		VaultID: id, PartyA: lt.Alice, PartyB: lt.Bob, DissolveApprovalA: true, DissolveApprovalB: true,
	}, nil)
	gw.EXPECT().Simulate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	gw.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("connection reset"))

	auth := tokenAuth(t)
	d := dispatch.New(auth, dispatch.DefaultAllowList(), gw, gateway.NewAddressCredential(lt.Owner))
	dead := deadletter.NewQueue(filepath.Join(t.TempDir(), "dlq"))
	r := relayer.New(gw, d, auth, relayer.Config{}, relayer.WithDeadLetters(dead))

	out, err := r.Check(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, failure.KindSubmissionFailed, failure.KindOf(err))
	assert.Equal(t, relayer.ActionDissolve, out.Action)
	assert.False(t, out.Resolved)

	letters, err := dead.List()
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, id.Hex(), letters[0].VaultID)
	assert.Equal(t, string(relayer.ActionDissolve), letters[0].Action)
}

func TestSweepForgetsResolvedVaults(t *testing.T) {
	h := newHarness(t, relayer.Config{})
	ctx := context.Background()
	id, _ := h.f.Vault(t)
	h.relayer.Watch(id)

	h.relayer.Sweep(ctx)
	assert.Equal(t, 1, h.relayer.Watched())

	h.f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveRedemption))
	h.relayer.Sweep(ctx)
	h.relayer.Sweep(ctx)
	assert.Equal(t, 0, h.relayer.Watched())
}

func TestRunReactsToLedgerEvents(t *testing.T) {
	h := newHarness(t, relayer.Config{Interval: time.Hour})
	h.f.Ledger.Subscribe(func(ev ledger.Event) {
		switch ev.Kind {
		case ledger.EventVaultCreated:
			h.relayer.Watch(ev.Vault)
		case ledger.EventRedemptionApproved, ledger.EventDissolutionApproved:
			h.relayer.Notify(ev.Vault)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.relayer.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	id, _ := h.f.Vault(t)
	assert.Equal(t, 1, h.relayer.Watched())
	h.f.Submit(t, lt.Bob, lt.VaultCall(id, gateway.OpApproveRedemption))

	require.Eventually(t, func() bool {
		info, err := h.f.Ledger.VaultInfo(context.Background(), id)
		return err == nil && info.IsRedeemed
	}, 2*time.Second, 10*time.Millisecond)
}

type fakeSource struct {
	head    uint64
	created []vault.Created
	ranges  [][2]uint64
}

func (s *fakeSource) Head(context.Context) (uint64, error) { return s.head, nil }

func (s *fakeSource) VaultsCreated(_ context.Context, from, to uint64) ([]vault.Created, error) {
	s.ranges = append(s.ranges, [2]uint64{from, to})
	return s.created, nil
}

func TestFollowWatchesCreatedVaults(t *testing.T) {
	h := newHarness(t, relayer.Config{})
	src := &fakeSource{head: 10, created: []vault.Created{{VaultID: common.HexToAddress("0xaa")}, {VaultID: common.HexToAddress("0xbb")}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.relayer.Follow(ctx, src, 5, time.Hour))

	assert.Equal(t, 2, h.relayer.Watched())
	assert.Equal(t, [][2]uint64{{5, 10}}, src.ranges)
}
