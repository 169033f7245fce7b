// Command node starts a kittychain node: a single-sealer asset ledger
// with an in-process offchain compute worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tolelom/kittychain/config"
	"github.com/tolelom/kittychain/consensus"
	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/indexer"
	"github.com/tolelom/kittychain/ledger"
	"github.com/tolelom/kittychain/offchain"
	"github.com/tolelom/kittychain/rpc"
	"github.com/tolelom/kittychain/storage"
	"github.com/tolelom/kittychain/vm"
	"github.com/tolelom/kittychain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/kittychain/vm/modules/economy"
	_ "github.com/tolelom/kittychain/vm/modules/kitties"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "sealer.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new sealer key and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("KITTY_PASSWORD")
	if password == "" {
		log.Warn("KITTY_PASSWORD not set, keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			fatal(log, "generate key", err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			fatal(log, "save key", err)
		}
		fmt.Printf("Generated key. Public key (sealer address): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(log, *cfgPath)
	if err != nil {
		fatal(log, "config", err)
	}

	// ---- load sealer key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		fatal(log, "load key", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fatal(log, "mkdir data dir", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		fatal(log, "open db", err)
	}
	defer db.Close()

	blockStore := storage.NewLevelBlockStore(db)
	state := storage.NewStateDB(db)

	// ---- initialise blockchain ----
	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		fatal(log, "blockchain init", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			fatal(log, "genesis", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			fatal(log, "add genesis", err)
		}
		log.Info("genesis block committed", "hash", genesisBlock.Hash)
	}

	// ---- events ----
	emitter := events.NewEmitter()

	// ---- indexer ----
	idx := indexer.New(db, emitter)

	// ---- mempool ----
	mempool := core.NewMempool()

	// ---- metrics ----
	promReg := prometheus.NewRegistry()
	ocwMetrics := offchain.NewMetrics(promReg)

	// ---- offchain scheduling (onchain half) ----
	pending := storage.NewPendingStore(db)
	scheduler := offchain.NewScheduler(pending, ocwMetrics, log)

	// ---- VM executor ----
	maxKittyID := core.MaxKittyID
	if cfg.Ledger.MaxKittyID > 0 {
		maxKittyID = core.KittyID(cfg.Ledger.MaxKittyID)
	}
	params := ledger.Params{
		KittyPrice:      cfg.Ledger.KittyPrice,
		MaxOwned:        cfg.Ledger.MaxOwned,
		MaxKittyID:      maxKittyID,
		WorkerAuthority: cfg.Ledger.WorkerAuthority,
	}
	exec := vm.NewExecutor(state, emitter, params, nil, scheduler)

	// ---- consensus ----
	chainID := cfg.Genesis.ChainID
	sealer := consensus.New(chainID, cfg.MaxBlockTxs, bc, state, mempool, exec, emitter, privKey)

	// ---- offchain worker (out-of-band half) ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Worker.Enabled {
		worker := offchain.NewWorker(
			offchain.WorkerConfig{
				ChainID:      chainID,
				ComputeDelay: time.Duration(cfg.Worker.ComputeDelayMS) * time.Millisecond,
				SubmitRate:   cfg.Worker.SubmitRate,
			},
			pending,
			wallet.New(privKey),
			mempool.Add,
			func(address string) (uint64, error) {
				acc, err := state.GetAccount(address)
				if err != nil {
					return 0, err
				}
				return acc.Nonce, nil
			},
			ocwMetrics,
			log,
		)
		worker.Start(ctx, emitter)
		log.Info("offchain worker running",
			"compute_delay_ms", cfg.Worker.ComputeDelayMS,
			"submit_rate", cfg.Worker.SubmitRate)
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, chainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken, promReg)
	if err := rpcServer.Start(); err != nil {
		fatal(log, "rpc start", err)
	}
	defer rpcServer.Stop()
	log.Info("rpc listening", "addr", rpcAddr, "auth", cfg.RPCAuthToken != "")

	// ---- sealing loop ----
	interval := time.Duration(cfg.BlockIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sealer.Run(interval, done)
	}()
	log.Info("sealer running", "address", privKey.Public().Hex(), "interval", interval)

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	// 1. Stop sealing first (no new blocks written)
	close(done)
	wg.Wait()

	// 2. Stop the worker so no callback lands in a dead mempool.
	cancel()

	// 3. Deferred calls run in LIFO: rpcServer.Stop → db.Close
	log.Info("shutdown complete")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}

func loadConfig(log *slog.Logger, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("config file not found, using defaults", "path", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
