package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/bridge"
	"github.com/qubic/go-bridge-coordinator/chain"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/handler/ledger"
	"github.com/qubic/go-bridge-coordinator/metrics"
	"github.com/qubic/go-bridge-coordinator/rpc"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const prefix = "BRIDGE_COORDINATOR"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	var cfg struct {
		Server struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:5s"`
			ShutdownTimeout time.Duration `conf:"default:5s"`
			HttpHost        string        `conf:"default:0.0.0.0:8000"`
			GrpcHost        string        `conf:"default:0.0.0.0:8001"`
		}
		Store struct {
			Folder string `conf:"default:store"`
		}
		Chain struct {
			GenesisHeight uint64        `conf:"default:0"`
			GenesisTime   string        `conf:"default:2024-01-01T00:00:00Z"`
			BlockInterval time.Duration `conf:"default:12s"`
		}
		Bridge struct {
			DomainID     uint8    `conf:"default:1"`
			Threshold    uint16   `conf:"default:1"`
			ExpiryBlocks uint64   `conf:"default:100"`
			Admins       []string `conf:"help:hex addresses granted the admin role on first start"`
			Relayers     []string `conf:"help:hex addresses admitted as relayers on first start"`
			Forwarders   []string `conf:"help:hex addresses of trusted forwarders"`
			BaseFee      string   `conf:"default:0"`
		}
		Ledger struct {
			ResourceID string `conf:"help:hex resource id bound to the ledger handler on first start"`
		}
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	log.Printf("main: Config :\n%v\n", out)

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	logger, err := zapConfig.Build()
	if err != nil {
		return errors.Wrap(err, "creating logger")
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	genesis, err := genesisFromConfig(cfg.Bridge.Threshold, cfg.Bridge.ExpiryBlocks, cfg.Bridge.Admins, cfg.Bridge.Relayers, cfg.Bridge.Forwarders, cfg.Bridge.BaseFee, cfg.Ledger.ResourceID)
	if err != nil {
		return errors.Wrap(err, "reading genesis config")
	}

	genesisTime, err := time.Parse(time.RFC3339, cfg.Chain.GenesisTime)
	if err != nil {
		return errors.Wrap(err, "parsing chain genesis time")
	}
	clock, err := chain.NewBlockClock(cfg.Chain.GenesisHeight, genesisTime, cfg.Chain.BlockInterval)
	if err != nil {
		return errors.Wrap(err, "creating block clock")
	}

	ps, err := store.NewPebbleStore(cfg.Store.Folder, logger)
	if err != nil {
		return errors.Wrap(err, "opening store")
	}
	defer ps.Close()

	registry := handler.NewRegistry(ps)
	registry.Register(ledger.Name, ledger.New(ps, sugar))

	broker := events.NewBroker()
	m := metrics.New()
	emitter := events.Multi{events.NewLogEmitter(sugar), broker, m}

	coordinator := bridge.NewCoordinator(types.DomainID(cfg.Bridge.DomainID), ps, registry, emitter, clock, sugar)
	seeded, err := coordinator.Seed(context.Background(), genesis)
	if err != nil {
		return errors.Wrap(err, "seeding genesis")
	}
	sugar.Infow("Coordinator ready", "domain", cfg.Bridge.DomainID, "seeded", seeded, "height", clock.Height())

	registerGauges(m, clock, ps, broker)

	rpcServer := rpc.NewServer(rpc.Config{
		ListenAddrGRPC:  cfg.Server.GrpcHost,
		ListenAddrHTTP:  cfg.Server.HttpHost,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, coordinator, broker, m, ps.EventListener(), sugar)
	serveErrors, err := rpcServer.Start()
	if err != nil {
		return errors.Wrap(err, "starting rpc server")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case <-shutdown:
		sugar.Infow("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return rpcServer.Stop(ctx)
	case err := <-serveErrors:
		return errors.Wrap(err, "rpc server error")
	}
}

func genesisFromConfig(threshold uint16, expiry uint64, admins, relayers, forwarders []string, baseFee, ledgerResource string) (bridge.Genesis, error) {
	genesis := bridge.Genesis{
		Threshold:    threshold,
		ExpiryBlocks: expiry,
		Resources:    make(map[types.ResourceID]string),
	}

	var err error
	if genesis.Admins, err = parseAddresses(admins); err != nil {
		return bridge.Genesis{}, errors.Wrap(err, "admins")
	}
	if genesis.Relayers, err = parseAddresses(relayers); err != nil {
		return bridge.Genesis{}, errors.Wrap(err, "relayers")
	}
	if genesis.Forwarders, err = parseAddresses(forwarders); err != nil {
		return bridge.Genesis{}, errors.Wrap(err, "forwarders")
	}

	genesis.BaseFee, err = uint256.FromDecimal(baseFee)
	if err != nil {
		return bridge.Genesis{}, errors.Wrapf(err, "parsing base fee %q", baseFee)
	}

	if ledgerResource != "" {
		resourceID, err := types.ResourceIDFromHex(ledgerResource)
		if err != nil {
			return bridge.Genesis{}, errors.Wrap(err, "ledger resource id")
		}
		genesis.Resources[resourceID] = ledger.Name
	}

	return genesis, nil
}

func parseAddresses(values []string) ([]types.Address, error) {
	addresses := make([]types.Address, 0, len(values))
	for _, v := range values {
		if !common.IsHexAddress(v) {
			return nil, errors.Errorf("invalid address %q", v)
		}
		addresses = append(addresses, common.HexToAddress(v))
	}
	return addresses, nil
}

func registerGauges(m *metrics.Metrics, heights chain.HeightSource, ps *store.PebbleStore, broker *events.Broker) {
	m.RegisterGauge("chain_height", "Current block height seen by the coordinator.", func() float64 {
		return float64(heights.Height())
	})
	m.RegisterGauge("paused", "1 while the bridge is paused.", func() float64 {
		paused, err := ps.IsPaused(context.Background())
		if err != nil || !paused {
			return 0
		}
		return 1
	})
	m.RegisterGauge("event_subscribers", "Number of open event subscriptions.", func() float64 {
		return float64(broker.Subscribers())
	})
	m.RegisterCounter("event_subscriber_drops_total", "Events dropped because a subscriber fell behind.", func() float64 {
		return float64(broker.Dropped())
	})
	m.RegisterGauge("pebble_writes_stalled", "1 while pebble stalls writes.", func() float64 {
		if ps.EventListener().WritesStalled() {
			return 1
		}
		return 0
	})
}
