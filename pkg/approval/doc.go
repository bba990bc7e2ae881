// Package approval gates sensitive tool calls behind a human decision.
//
// Invariants:
// - A request is created only after its parameters pass the tool's schema.
// - Requests are keyed by a generated invocation ID, never by tool name.
// - Pending moves once, to Approved or Rejected; a decided request never changes.
// - The Broker shows one request at a time, whatever the number of waiting workers.
//
// Usage:
//
//	catalog, _ := approval.NewCatalog(map[string]approval.ToolSpec{
//		"scrape_website": {ApprovalRequired: true, ExpectedParams: map[string]string{"url": "string"}},
//	})
//	broker := approval.NewBroker(approval.NewConsolePresenter(os.Stdin, os.Stdout), 5*time.Minute)
//	defer broker.Close()
//	mgr := approval.NewManager(catalog, broker)
//	req, _ := mgr.RequestApproval(ctx, "scrape_website", p)
//	_ = req.Status
package approval
