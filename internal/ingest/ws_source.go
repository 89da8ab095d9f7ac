package ingest

import (
	"context"
	"log"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/solana"
)

// AMM programs whose logs carry pool creation events.
var defaultWatchedPrograms = []string{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", // Raydium AMM v4
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK", // Raydium CLMM
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",  // pump.fun
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc",  // Orca Whirlpool
}

// WSSource watches the log stream for pool births and feeds candidates
// through the resolver into the admitter. The underlying client owns
// reconnects; this worker only consumes notifications.
type WSSource struct {
	client   solana.WSClient
	resolver *Resolver
	admitter *Admitter
	programs []string
	logger   *log.Logger
}

func NewWSSource(client solana.WSClient, resolver *Resolver, admitter *Admitter, logger *log.Logger) *WSSource {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws-source] ", log.LstdFlags)
	}
	return &WSSource{
		client:   client,
		resolver: resolver,
		admitter: admitter,
		programs: defaultWatchedPrograms,
		logger:   logger,
	}
}

// Run subscribes and consumes until the context ends.
func (s *WSSource) Run(ctx context.Context) error {
	ch, err := s.client.SubscribeLogs(ctx, solana.LogsFilter{Mentions: s.programs})
	if err != nil {
		return err
	}
	s.logger.Printf("subscribed to %d programs", len(s.programs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, notif)
		}
	}
}

func (s *WSSource) handle(ctx context.Context, notif solana.LogNotification) {
	if notif.Err != nil {
		return // failed transactions never birth a pool
	}
	if !HasPoolBirthMarker(notif.Logs) {
		return
	}

	mints, err := s.resolver.Resolve(ctx, notif.Signature)
	if err != nil {
		s.logger.Printf("resolve %s: %v", notif.Signature, err)
		return
	}

	now := time.Now().UnixMilli()
	for _, mint := range mints {
		_, err := s.admitter.Admit(ctx, domain.Candidate{
			Mint:         mint,
			Source:       domain.SourceLogStream,
			TxSignature:  notif.Signature,
			DiscoveredAt: now,
		})
		if err != nil {
			s.logger.Printf("admit %s: %v", mint, err)
		}
	}
}
