// Package audit keeps a trail of control actions taken on the hub.
//
// Every refresh or reboot requested through the HTTP API or an MQTT command
// topic is stored in the audit_log table with who asked for it, where the
// request came from and how it ended. Reads of state are not audited.
//
// Usage:
//
//	trail := audit.NewTrail(audit.NewSQLiteRepository(db.DB), log)
//	trail.Record(ctx, audit.Event{
//	    Action:  audit.ActionReboot,
//	    EntryID: "controller",
//	    Subject: "dashboard",
//	    Source:  audit.SourceAPI,
//	    Outcome: audit.OutcomeAccepted,
//	})
package audit
