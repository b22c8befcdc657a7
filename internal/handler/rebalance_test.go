package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/autopilot"
	"github.com/web3-frozen/yield-optimizer/internal/client"
	"github.com/web3-frozen/yield-optimizer/internal/rebalance"
	"github.com/web3-frozen/yield-optimizer/internal/yields"
)

type fixedQuoter struct{}

func (fixedQuoter) Compare(_ context.Context, _ string, current string) yields.Comparison {
	cur := 4.2
	if current == "Yearn" {
		cur = 6.5
	}
	return yields.Comparison{Best: "Yearn", BestAPY: 6.5, Current: current, CurrentAPY: cur, Difference: 6.5 - cur}
}

type nopChain struct{}

func (nopChain) Withdraw(context.Context, string, float64) (string, error) { return "0x1", nil }
func (nopChain) ClaimRewards(context.Context, string) (string, float64, error) {
	return "0x2", 50, nil
}
func (nopChain) Deposit(context.Context, string, float64) (string, error) { return "0x3", nil }
func (nopChain) SwitchCostUSD() float64                                   { return 56 }

func TestRebalanceRunAndStatus(t *testing.T) {
	wf := rebalance.New(fixedQuoter{}, nopChain{}, rebalance.Options{Logger: discard})

	rec, env := do(t, RebalanceRun(wf), http.MethodPost, "/api/rebalance/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res rebalance.Result
	decodeData(t, env, &res)
	if !res.Triggered || res.To != "Yearn" || len(res.TxHashes) != 3 {
		t.Errorf("result = %+v", res)
	}

	_, env = do(t, RebalanceStatus(wf), http.MethodGet, "/api/rebalance/status", "")
	var st rebalance.Status
	decodeData(t, env, &st)
	if st.State.CurrentProtocol != "Yearn" || len(st.History) != 1 {
		t.Errorf("status = %+v", st)
	}
}

type oneRemote struct{}

func (oneRemote) Simulate(context.Context, string) (client.SimulateResult, error) {
	return client.SimulateResult{Protocol: "aave"}, nil
}

func TestAutopilotHandlers(t *testing.T) {
	rn := autopilot.New(oneRemote{}, autopilot.StaticWallet("0xabc"), autopilot.Options{Interval: time.Hour, Logger: discard})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, env := do(t, AutopilotStart(rn, ctx), http.MethodPost, "/api/autopilot/start", "")
	if string(env.Data) != `{"running":true,"started":true}` {
		t.Errorf("start data = %s", env.Data)
	}
	_, env = do(t, AutopilotStart(rn, ctx), http.MethodPost, "/api/autopilot/start", "")
	if string(env.Data) != `{"running":true,"started":false}` {
		t.Errorf("second start data = %s", env.Data)
	}

	_, env = do(t, AutopilotStatus(rn), http.MethodGet, "/api/autopilot", "")
	var snap autopilot.Snapshot
	decodeData(t, env, &snap)
	if !snap.Running {
		t.Error("snapshot not running")
	}

	do(t, AutopilotStop(rn), http.MethodPost, "/api/autopilot/stop", "")
	if rn.Running() {
		t.Error("runner still running after stop")
	}
	<-rn.Done()
}
