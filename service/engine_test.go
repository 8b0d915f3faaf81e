package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"

	"freya/domain/book"
	"freya/domain/claims"
	"freya/domain/market"
	"freya/infra/outbox"
	"freya/infra/sequence"
	"freya/infra/snapshot"
	"freya/infra/wal"
)

const (
	testAsset   = uint64(1)
	devAcct     = uint64(900)
	royaltyAcct = uint64(901)
	seller      = uint64(10)
	buyer       = uint64(11)
)

// 2% dev + 1% burn + 5% royalty on every sale
var testFees = market.FeeConfig{DevBps: 200, BurnBps: 100, DevRecipient: devAcct}

func buildEngine(t *testing.T, walDir string, royalty market.RoyaltySource, custody market.Custody) *Engine {
	t.Helper()
	w, err := wal.Open(wal.Config{Dir: walDir, SegmentSize: 1 << 20})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	ob, err := outbox.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() {
		_ = w.Close()
		_ = ob.Close()
	})
	return NewEngine(
		testAsset, testFees,
		book.NewBook(1), claims.NewLedger(), market.NewMemOwners(),
		royalty, custody,
		sequence.New(0, book.MaxOrderID),
		w, ob,
	)
}

func newTestEngine(t *testing.T) *Engine {
	return buildEngine(t, t.TempDir(),
		market.FixedRoyalty{Recipient: royaltyAcct, Bps: 500},
		market.NewMemCustody())
}

func TestBuyFlowRecordsClaims(t *testing.T) {
	e := newTestEngine(t)

	ask, err := e.Submit(seller, book.Ask, 100, 10)
	if err != nil {
		t.Fatalf("submit ask: %v", err)
	}
	if !ask.Rested || ask.Filled != 0 {
		t.Fatalf("ask should rest: %+v", ask)
	}

	bid, err := e.Submit(buyer, book.Bid, 100, 6)
	if err != nil {
		t.Fatalf("submit bid: %v", err)
	}
	if bid.Filled != 6 || bid.Rested {
		t.Fatalf("bid should fill fully: %+v", bid)
	}

	// proceeds 600: dev 12, burn 6, royalty 30, maker nets 552
	if a, p, _ := e.Pending(seller, ask.OrderID); a != 0 || p != 552 {
		t.Errorf("maker claim: asset=%d payment=%d", a, p)
	}
	if a, p, _ := e.Pending(buyer, bid.OrderID); a != 6 || p != 0 {
		t.Errorf("taker claim: asset=%d payment=%d", a, p)
	}
	if a, p, _ := e.Pending(royaltyAcct, ask.OrderID); a != 0 || p != 30 {
		t.Errorf("royalty claim: asset=%d payment=%d", a, p)
	}
	if a, p, _ := e.Pending(devAcct, ask.OrderID); a != 0 || p != 12 {
		t.Errorf("dev claim: asset=%d payment=%d", a, p)
	}
	if e.Burned() != 6 {
		t.Errorf("burned: %d", e.Burned())
	}
}

func TestSellFlowRecordsClaims(t *testing.T) {
	e := newTestEngine(t)

	bid, err := e.Submit(buyer, book.Bid, 200, 4)
	if err != nil {
		t.Fatalf("submit bid: %v", err)
	}
	ask, err := e.Submit(seller, book.Ask, 200, 4)
	if err != nil {
		t.Fatalf("submit ask: %v", err)
	}
	if ask.Filled != 4 {
		t.Fatalf("ask should fill: %+v", ask)
	}

	// proceeds 800: dev 16, burn 8, royalty 40, seller nets 736
	if a, p, _ := e.Pending(buyer, bid.OrderID); a != 4 || p != 0 {
		t.Errorf("maker is owed the asset: asset=%d payment=%d", a, p)
	}
	if a, p, _ := e.Pending(seller, ask.OrderID); a != 0 || p != 736 {
		t.Errorf("taker is owed the net proceeds: asset=%d payment=%d", a, p)
	}
	if e.Burned() != 8 {
		t.Errorf("burned: %d", e.Burned())
	}
}

func TestRoyaltyClampedToRemainder(t *testing.T) {
	walDir := t.TempDir()
	// a royalty source asking for more than the sale nets
	e := buildEngine(t, walDir,
		market.FixedRoyalty{Recipient: royaltyAcct, Bps: 9_999},
		market.NewMemCustody())

	ask, _ := e.Submit(seller, book.Ask, 100, 1)
	if _, err := e.Submit(buyer, book.Bid, 100, 1); err != nil {
		t.Fatalf("submit bid: %v", err)
	}

	// proceeds 100: dev 2, burn 1, royalty clamped to 97, maker nets 0
	if _, p, _ := e.Pending(royaltyAcct, ask.OrderID); p != 97 {
		t.Errorf("royalty should clamp to 97, got %d", p)
	}
	if _, p, _ := e.Pending(seller, ask.OrderID); p != 0 {
		t.Errorf("maker should net 0, got %d", p)
	}
}

func TestClaimPaysOutOnce(t *testing.T) {
	e := newTestEngine(t)
	custody := market.NewMemCustody()
	e.custody = custody

	ask, _ := e.Submit(seller, book.Ask, 100, 5)
	e.Submit(buyer, book.Bid, 100, 5)

	a, p, err := e.Claim(context.Background(), seller, ask.OrderID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if a != 0 || p != 460 { // 500 - 10 dev - 5 burn - 25 royalty
		t.Fatalf("claim amounts: asset=%d payment=%d", a, p)
	}
	if _, bal := custody.Balance(seller); bal != 460 {
		t.Errorf("custody balance: %d", bal)
	}

	a, p, err = e.Claim(context.Background(), seller, ask.OrderID)
	if err != nil || a != 0 || p != 0 {
		t.Errorf("second claim must be a zero no-op: %d %d %v", a, p, err)
	}
}

type failingCustody struct{}

func (failingCustody) TransferIn(context.Context, uint64, uint64, uint64) error { return nil }

func (failingCustody) TransferOut(context.Context, uint64, uint64, uint64) error {
	return errors.New("custody offline")
}

func TestClaimRestoredWhenTransferFails(t *testing.T) {
	e := buildEngine(t, t.TempDir(),
		market.FixedRoyalty{Recipient: royaltyAcct, Bps: 500},
		failingCustody{})

	ask, _ := e.Submit(seller, book.Ask, 100, 5)
	e.Submit(buyer, book.Bid, 100, 5)

	if _, _, err := e.Claim(context.Background(), seller, ask.OrderID); err == nil {
		t.Fatal("claim should surface the transfer failure")
	}
	// the claim survives for a later retry
	if _, p, _ := e.Pending(seller, ask.OrderID); p != 460 {
		t.Errorf("claim not restored: payment=%d", p)
	}
}

func TestSettleDrainsPrincipal(t *testing.T) {
	e := newTestEngine(t)

	a1, _ := e.Submit(seller, book.Ask, 100, 2)
	a2, _ := e.Submit(seller, book.Ask, 110, 3)
	e.Submit(buyer, book.Bid, 110, 5)

	_, p1, _ := e.Pending(seller, a1.OrderID)
	_, p2, _ := e.Pending(seller, a2.OrderID)
	asset, payment, err := e.Settle(context.Background(), seller)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if asset != 0 || payment != p1+p2 {
		t.Errorf("settle drained %d/%d, pendings were %d+%d", asset, payment, p1, p2)
	}
	if _, p, _ := e.Pending(seller, a1.OrderID); p != 0 {
		t.Error("claims should be cleared after settle")
	}
}

func TestCancelAuthorization(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Cancel(seller, 77); !errors.Is(err, book.ErrNotFound) {
		t.Errorf("unknown order: %v", err)
	}

	ask, _ := e.Submit(seller, book.Ask, 100, 5)
	if err := e.Cancel(buyer, ask.OrderID); !errors.Is(err, book.ErrUnauthorized) {
		t.Errorf("foreign cancel: %v", err)
	}
	if err := e.Cancel(seller, ask.OrderID); err != nil {
		t.Fatalf("own cancel: %v", err)
	}
	if err := e.Cancel(seller, ask.OrderID); !errors.Is(err, book.ErrNotFound) {
		t.Errorf("repeat cancel: %v", err)
	}
}

func TestBatchesAreBestEffort(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.SubmitBatch(seller, []Submission{
		{Side: book.Ask, Price: 100, Qty: 5},
		{Side: book.Ask, Price: 0, Qty: 5}, // bad price
		{Side: book.Ask, Price: 101, Qty: 5},
	})
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	if res[0].Err != nil || res[2].Err != nil {
		t.Errorf("good entries failed: %v %v", res[0].Err, res[2].Err)
	}
	if !errors.Is(res[1].Err, book.ErrBoundExceeded) {
		t.Errorf("bad entry: %v", res[1].Err)
	}

	errs, err := e.CancelBatch(seller, []uint64{res[0].OrderID, 9999, res[2].OrderID})
	if err != nil {
		t.Fatalf("cancel batch: %v", err)
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("good cancels failed: %v %v", errs[0], errs[2])
	}
	if !errors.Is(errs[1], book.ErrNotFound) {
		t.Errorf("bad cancel: %v", errs[1])
	}
}

// reentrantRoyalty calls back into the engine mid-match.
type reentrantRoyalty struct {
	eng      *Engine
	innerErr error
}

func (r *reentrantRoyalty) RoyaltyInfo(uint64, uint64) (uint64, uint64) {
	_, r.innerErr = r.eng.Submit(buyer, book.Bid, 1, 1)
	return royaltyAcct, 0
}

func TestReentrantCallbackRejected(t *testing.T) {
	royalty := &reentrantRoyalty{}
	e := buildEngine(t, t.TempDir(), royalty, market.NewMemCustody())
	royalty.eng = e

	e.Submit(seller, book.Ask, 100, 1)
	if _, err := e.Submit(buyer, book.Bid, 100, 1); err != nil {
		t.Fatalf("outer submit must survive the callback: %v", err)
	}
	if !errors.Is(royalty.innerErr, book.ErrReentrant) {
		t.Errorf("inner submit: %v", royalty.innerErr)
	}

	// the guard releases afterwards
	if _, err := e.Submit(seller, book.Ask, 100, 1); err != nil {
		t.Errorf("engine wedged after reentrant rejection: %v", err)
	}
}

func TestBootReplaysJournal(t *testing.T) {
	walDir := t.TempDir()
	royalty := market.FixedRoyalty{Recipient: royaltyAcct, Bps: 500}

	e1 := buildEngine(t, walDir, royalty, market.NewMemCustody())
	a1, _ := e1.Submit(seller, book.Ask, 100, 10)
	e1.Submit(buyer, book.Bid, 100, 6)
	a2, _ := e1.Submit(seller, book.Ask, 105, 8)
	if err := e1.Cancel(seller, a2.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, err := e1.Claim(context.Background(), buyer, 2); err != nil {
		t.Fatalf("claim: %v", err)
	}
	wantDepth, _ := e1.DepthSnapshot(0)
	_, wantMakerP, _ := e1.Pending(seller, a1.OrderID)
	wantBurned := e1.Burned()

	e2 := buildEngine(t, walDir, royalty, market.NewMemCustody())
	if err := Boot(e2, t.TempDir(), walDir); err != nil {
		t.Fatalf("boot: %v", err)
	}

	gotDepth, _ := e2.DepthSnapshot(0)
	if !reflect.DeepEqual(gotDepth, wantDepth) {
		t.Errorf("depth mismatch after replay:\n got %+v\nwant %+v", gotDepth, wantDepth)
	}
	if _, p, _ := e2.Pending(seller, a1.OrderID); p != wantMakerP {
		t.Errorf("maker claim after replay: %d, want %d", p, wantMakerP)
	}
	if a, _, _ := e2.Pending(buyer, 2); a != 0 {
		t.Error("claimed amount reappeared after replay")
	}
	if e2.Burned() != wantBurned {
		t.Errorf("burned after replay: %d, want %d", e2.Burned(), wantBurned)
	}

	// identifier sequencing resumes past everything replayed
	res, err := e2.Submit(buyer, book.Bid, 50, 1)
	if err != nil {
		t.Fatalf("post-boot submit: %v", err)
	}
	if res.OrderID <= a2.OrderID {
		t.Errorf("order id %d reissued at or below replayed %d", res.OrderID, a2.OrderID)
	}
}

func TestSnapshotThenReplay(t *testing.T) {
	walDir := t.TempDir()
	snapDir := t.TempDir()
	royalty := market.FixedRoyalty{Recipient: royaltyAcct, Bps: 500}

	e1 := buildEngine(t, walDir, royalty, market.NewMemCustody())
	e1.Submit(seller, book.Ask, 100, 10)
	e1.Submit(buyer, book.Bid, 100, 6)

	s, err := e1.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := snapshot.Save(snapDir, s); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	// activity after the snapshot lands in the WAL only
	e1.Submit(seller, book.Ask, 105, 4)
	wantDepth, _ := e1.DepthSnapshot(0)
	wantBurned := e1.Burned()

	e2 := buildEngine(t, walDir, royalty, market.NewMemCustody())
	if err := Boot(e2, snapDir, walDir); err != nil {
		t.Fatalf("boot: %v", err)
	}
	gotDepth, _ := e2.DepthSnapshot(0)
	if !reflect.DeepEqual(gotDepth, wantDepth) {
		t.Errorf("depth mismatch:\n got %+v\nwant %+v", gotDepth, wantDepth)
	}
	if e2.Burned() != wantBurned {
		t.Errorf("burned: %d, want %d", e2.Burned(), wantBurned)
	}
}

func TestDepthSnapshotLimitsLevels(t *testing.T) {
	e := newTestEngine(t)
	for i := int64(1); i <= 5; i++ {
		e.Submit(seller, book.Ask, 100+i, 1)
		e.Submit(buyer, book.Bid, 100-i, 1)
	}
	d, err := e.DepthSnapshot(3)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if len(d.Bids) != 3 || len(d.Asks) != 3 {
		t.Fatalf("expected 3 levels per side, got %d/%d", len(d.Bids), len(d.Asks))
	}
	if d.Bids[0].Price != 99 || d.Asks[0].Price != 101 {
		t.Errorf("best-first order broken: bid %d ask %d", d.Bids[0].Price, d.Asks[0].Price)
	}
}
