package main

import (
	"context"
	"flag"
	"log"
	"net"

	"google.golang.org/grpc"

	"freya/api/grpcserver"
	"freya/api/pb"
	"freya/config"
	"freya/domain/book"
	"freya/domain/claims"
	"freya/domain/market"
	"freya/infra/outbox"
	"freya/infra/sequence"
	"freya/infra/stream"
	"freya/infra/wal"
	"freya/jobs/broadcaster"
	"freya/jobs/settler"
	"freya/service"
)

func main() {
	cfgPath := flag.String("config", "freya.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---------------- Journals ----------------

	entryWAL, err := wal.Open(wal.Config{
		Dir:         cfg.WAL.Dir,
		SegmentSize: cfg.WAL.SegmentSizeMB << 20,
	})
	if err != nil {
		log.Fatalf("wal init failed: %v", err)
	}
	defer entryWAL.Close()

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Fatalf("outbox init failed: %v", err)
	}
	defer ob.Close()

	// ---------------- Collaborators ----------------

	fees := market.FeeConfig{
		DevBps:       cfg.Fees.DevBps,
		BurnBps:      cfg.Fees.BurnBps,
		DevRecipient: cfg.Fees.DevRecipient,
	}
	royalty := market.FixedRoyalty{
		Recipient: cfg.Royalty.Recipient,
		Bps:       cfg.Royalty.Bps,
	}
	custody := market.NewMemCustody()
	owners := market.NewMemOwners()

	// ---------------- Domain + service ----------------

	seq := sequence.New(0, book.MaxOrderID)

	eng := service.NewEngine(
		cfg.Asset,
		fees,
		book.NewBook(cfg.MinQty),
		claims.NewLedger(),
		owners,
		royalty,
		custody,
		seq,
		entryWAL,
		ob,
	)

	// ---------------- State rebuild ----------------

	if err := service.Boot(eng, cfg.Snapshot.Dir, cfg.WAL.Dir); err != nil {
		log.Fatalf("state rebuild failed: %v", err)
	}

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.StartSnapshotJob(ctx, cfg.Snapshot.Dir, cfg.SnapshotInterval())

	if len(cfg.Kafka.Brokers) > 0 {
		bc, err := broadcaster.New(ob, cfg.Kafka.Brokers, cfg.Kafka.TradeTopic, cfg.DrainInterval())
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		defer bc.Close()
		bc.Start(ctx)

		depthPub := stream.NewDepthPublisher(cfg.Kafka.Brokers, cfg.Kafka.DepthTopic)
		defer depthPub.Close()
		eng.StartDepthJob(ctx, depthPub, cfg.Kafka.DepthLevels, cfg.DepthInterval())
	}

	house := []uint64{cfg.Fees.DevRecipient, cfg.Royalty.Recipient}
	settler.New(eng, house, cfg.SettlerInterval()).Start(ctx)

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	grpcSrv := grpc.NewServer(grpc.ForceServerCodec(pb.Codec{}))
	pb.RegisterEngineServer(grpcSrv, grpcserver.NewServer(eng))

	log.Printf("freya engine serving asset %d on %s", cfg.Asset, cfg.GRPC.Addr)

	if err := grpcSrv.Serve(lis); err != nil {
		log.Fatalf("grpc server exited: %v", err)
	}
}
