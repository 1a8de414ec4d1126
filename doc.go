// Package webhooks is the webhook subsystem of the Fluxpay payment
// orchestration platform.
//
// It covers both directions of webhook traffic:
//
//   - Inbound: connector notifications (payment, refund, dispute and mandate
//     lifecycle signals) are authenticated, classified, deduplicated and
//     routed to the owning resource flow, which updates the business object
//     through the injected business cores.
//   - Outbound: notify-worthy state changes produce an idempotent event
//     record that is signed, delivered to the merchant endpoint and retried
//     on a persistent schedule until it succeeds or the retry budget runs
//     out.
//
// The pipeline is a library, not a service: connector adapters, business
// cores and the persistence backend are injected by the host application.
//
// Quick start:
//
//	p, err := webhooks.New(
//	    webhooks.WithStore(memoryStore),
//	    webhooks.WithConnector(stripeAdapter),
//	    webhooks.WithPaymentCore(payments),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p.Start(ctx)
//	defer p.Stop(ctx)
//
//	ack, outcome, err := p.Dispatcher().Process(ctx, incoming, inbound.Route{
//	    MerchantID:    "merchant_123",
//	    ConnectorName: "stripe",
//	})
package webhooks
