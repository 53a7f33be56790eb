// Package database provides the data access layer for the storefront.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, error helpers
//	├── profiles/        # Accounts, roles, login state, API tokens
//	├── books/           # Catalog rows and publisher listings
//	├── transactions/    # Payment records and status transitions
//	├── ownership/       # user_books entitlement rows
//	├── plans/           # Subscription plans
//	├── subscriptions/   # Paid subscription periods
//	├── reconciliation/  # Ledger inconsistency issues
//	├── devotionals/     # Message of the day
//	├── audit/           # Audit events
//	└── settings/        # Store settings
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./storefront.db", log)
//	txRepo := transactions.NewRepository(db.DB)
//	ok, err := txRepo.Transition(ctx, id, entities.TransactionPending, entities.TransactionCompleted, "")
//
// Every method takes a context and runs through db.WithContext. Callers
// recognise missing rows with database.IsNotFound and constraint hits with
// database.IsUniqueViolation.
package database
