package internal_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"ledger_engine/internal/csvio"
	"ledger_engine/internal/processor"
	"ledger_engine/internal/repository/memory"
	"ledger_engine/internal/service"
	"ledger_engine/pkg/crypto"
	"ledger_engine/pkg/metrics"
)

type testEnv struct {
	clients  *memory.ClientRepository
	journal  *memory.OperationStore
	disputes *memory.OperationStore

	engine *processor.Engine
	alerts *service.AlertService
	email  *service.MockEmailSink
	logger *slog.Logger
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clients := memory.NewClientRepository()
	journal := memory.NewOperationStore()
	disputes := memory.NewOperationStore()

	email := &service.MockEmailSink{}
	alerts := service.NewAlertService(email, service.NewLogWebhookSink(logger), 1, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = alerts.Shutdown(ctx)
	})

	collector := metrics.NewCollector(logger)
	engine := processor.NewEngine(clients, journal, disputes, collector, alerts, logger)

	return &testEnv{
		clients:  clients,
		journal:  journal,
		disputes: disputes,
		engine:   engine,
		alerts:   alerts,
		email:    email,
		logger:   logger,
	}
}

// replay runs a CSV operation log through the full pipeline and returns the
// emitted balance report.
func replay(t *testing.T, env *testEnv, input string) string {
	t.Helper()
	ctx := context.Background()

	reader := csvio.NewReader(strings.NewReader(input), env.logger)
	if err := env.engine.Run(ctx, reader); err != nil {
		t.Fatalf("unexpected error running engine: %v", err)
	}

	all, err := env.clients.GetAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error reading ledger: %v", err)
	}

	var buf bytes.Buffer
	if err := csvio.NewWriter(&buf).WriteReport(ctx, all); err != nil {
		t.Fatalf("unexpected error writing report: %v", err)
	}
	return buf.String()
}

func TestReplay_DepositsAndWithdrawal(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"deposit,1,1,5.0\n"+
		"deposit,2,2,3.0\n"+
		"withdrawal,1,3,1.5\n")

	want := "client,available,held,total,locked\n" +
		"1,3.5,0,3.5,false\n" +
		"2,3,0,3,false\n"
	if report != want {
		t.Errorf("expected report:\n%s\ngot:\n%s", want, report)
	}
}

func TestReplay_DisputeHoldsFunds(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"deposit,1,1,5.0\n"+
		"dispute,1,1,\n")

	want := "client,available,held,total,locked\n" +
		"1,0,5,5,false\n"
	if report != want {
		t.Errorf("expected report:\n%s\ngot:\n%s", want, report)
	}
}

func TestReplay_ChargebackLocksAndRejectsFurtherDeposits(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"deposit,1,1,5.0\n"+
		"dispute,1,1,\n"+
		"chargeback,1,1,\n"+
		"deposit,1,4,10.0\n")

	want := "client,available,held,total,locked\n" +
		"1,0,0,0,true\n"
	if report != want {
		t.Errorf("expected report:\n%s\ngot:\n%s", want, report)
	}
}

func TestReplay_ResolveRestoresFundsAndSecondResolveIsNoOp(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"deposit,1,1,5.0\n"+
		"dispute,1,1,\n"+
		"resolve,1,1,\n"+
		"resolve,1,1,\n")

	want := "client,available,held,total,locked\n" +
		"1,5,0,5,false\n"
	if report != want {
		t.Errorf("expected report:\n%s\ngot:\n%s", want, report)
	}
}

func TestReplay_WithdrawalAgainstUnseenClientCreatesNothing(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"withdrawal,1,1,5.0\n")

	want := "client,available,held,total,locked\n"
	if report != want {
		t.Errorf("expected empty report:\n%s\ngot:\n%s", want, report)
	}
}

func TestReplay_OutputFollowsFirstAppearanceOrder(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"deposit,9,1,1.0\n"+
		"deposit,2,2,1.0\n"+
		"deposit,5,3,1.0\n"+
		"deposit,2,4,1.0\n")

	want := "client,available,held,total,locked\n" +
		"9,1,0,1,false\n" +
		"2,2,0,2,false\n" +
		"5,1,0,1,false\n"
	if report != want {
		t.Errorf("expected report:\n%s\ngot:\n%s", want, report)
	}
}

func TestReplay_ChargebackQueuesAccountLockedAlert(t *testing.T) {
	env := setup(t)

	_ = replay(t, env, "type,client,tx,amount\n"+
		"deposit,1,1,5.0\n"+
		"dispute,1,1,\n"+
		"chargeback,1,1,\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.alerts.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error draining alerts: %v", err)
	}

	if len(env.email.SentEmails) != 1 {
		t.Fatalf("expected 1 account-locked email, got %d", len(env.email.SentEmails))
	}
	if !strings.Contains(env.email.SentEmails[0].Body, "Account 1 locked by chargeback") {
		t.Errorf("unexpected alert body: %q", env.email.SentEmails[0].Body)
	}
}

func TestReport_SignatureRoundTrip(t *testing.T) {
	env := setup(t)

	report := replay(t, env, "type,client,tx,amount\n"+
		"deposit,1,1,5.0\n")

	signer := crypto.NewSigner("test-secret", env.logger)
	signature := signer.SignReport("run-1", []byte(report))

	ok, err := signer.VerifyReport("run-1", []byte(report), signature)
	if err != nil || !ok {
		t.Fatalf("expected signature to verify, got ok=%v err=%v", ok, err)
	}

	if _, err := signer.VerifyReport("run-2", []byte(report), signature); err == nil {
		t.Error("expected verification to fail for a different run id")
	}
}
