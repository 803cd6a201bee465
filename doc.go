// Project Structure Overview
/*
marketplace-backend/
├── cmd/
│   ├── server/
│   │   └── main.go          (API gateway)
│   └── worker/
│       └── main.go          (search indexing worker)
├── internal/
│   ├── config/
│   │   ├── config.go
│   │   └── database.go
│   ├── models/
│   │   ├── listing.go
│   │   ├── event.go
│   │   └── common.go
│   ├── handlers/
│   │   ├── listing.go
│   │   └── file.go
│   ├── services/
│   │   ├── listing_service.go
│   │   ├── upload_service.go
│   │   ├── storage_service.go
│   │   ├── event_service.go
│   │   ├── indexing_service.go
│   │   ├── search_service.go
│   │   └── search_memory.go
│   ├── middleware/
│   │   ├── auth.go
│   │   ├── cors.go
│   │   ├── idempotency.go
│   │   ├── rate_limit.go
│   │   ├── timeout.go
│   │   └── logging.go
│   ├── database/
│   │   └── connection.go
│   ├── cache/
│   │   └── redis.go
│   ├── utils/
│   │   ├── claims.go
│   │   ├── errors.go
│   │   ├── validator.go
│   │   ├── crypto.go
│   │   └── response.go
│   └── router/
│       └── router.go
├── go.mod
└── go.sum
*/

package marketplace

// This file shows the project structure; the two entry points live under cmd/
// and everything else is wired together in internal/router.
