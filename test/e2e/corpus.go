// Package e2e exercises the full pipeline over a generated file corpus: files
// on disk, a scan session, and queries against the committed index.
package e2e

import (
	"fmt"
	"strings"
)

// CorpusFile is one file in the generated corpus. Slug becomes the file name
// (an extension is appended when the file is written).
type CorpusFile struct {
	Slug    string
	Content string
}

// QueryTestCase defines a query and the file slug(s) of which at least one
// must appear in the results.
type QueryTestCase struct {
	Query         string
	ExpectedSlugs []string
	Description   string
}

// Corpus holds generated files and query test cases.
type Corpus struct {
	Files     []CorpusFile
	TestCases []QueryTestCase
}

// BuildCorpus returns a corpus of files with varied content. Each file
// carries a unique signature phrase so queries can assert the correct file
// is returned.
func BuildCorpus() *Corpus {
	topics := []struct {
		slug    string
		content string
	}{
		{"python-guide", "Python is a high-level programming language. Python programming language is used for web development and data science."},
		{"kubernetes-docs", "Kubernetes is an open-source container orchestration platform. Kubernetes container orchestration automates deployment and scaling."},
		{"react-tutorial", "React is a JavaScript library. React hooks and components enable building user interfaces."},
		{"go-language", "Go is a statically typed language. Go golang concurrency is achieved with goroutines and channels."},
		{"postgresql-manual", "PostgreSQL is an advanced relational database. PostgreSQL relational database supports JSON and full-text search."},
		{"docker-handbook", "Docker enables building and shipping applications. Docker container images are portable across environments."},
		{"rest-api-design", "REST is an architectural style for APIs. REST API endpoints use HTTP methods and status codes."},
		{"graphql-overview", "GraphQL is a query language for APIs. GraphQL query language lets clients request exactly what they need."},
		{"typescript-handbook", "TypeScript adds static types to JavaScript. TypeScript type system catches errors at compile time."},
		{"redis-cache", "Redis is an in-memory data store. Redis in-memory cache is used for sessions and caching."},
		{"terraform-iac", "Terraform manages cloud infrastructure. Terraform infrastructure as code is declarative."},
		{"prometheus-metrics", "Prometheus is a monitoring system. Prometheus monitoring metrics are time-series based."},
		{"grpc-overview", "gRPC is a high-performance RPC framework. gRPC remote procedure calls use protobuf."},
		{"oauth-authorization", "OAuth is an authorization framework. OAuth authorization enables secure delegated access."},
		{"git-workflow", "Git is a distributed version control system. Git version control tracks changes in source code."},
		{"sql-basics", "SQL is used to manage relational data. SQL structured query language has SELECT INSERT UPDATE DELETE."},
		{"microservices", "Microservices split an app into small services. Microservices architecture enables independent deployment."},
		{"kafka-streams", "Apache Kafka is a distributed event stream platform. Apache Kafka streaming handles high throughput."},
		{"nginx-config", "Nginx is a web server and reverse proxy. Nginx reverse proxy balances load and serves static files."},
		{"design-patterns", "Design patterns are reusable solutions. Design patterns software includes Singleton and Factory."},
		{"database-indexing", "Indexes speed up queries. Database indexing performance is critical for large tables."},
		{"cryptography-basics", "Cryptography secures data. Cryptography encryption decryption uses keys and algorithms."},
		{"load-balancing", "Load balancers distribute traffic. Load balancing high availability prevents single points of failure."},
		{"caching-strategies", "Caching improves performance. Caching strategy cache invalidation must be designed carefully."},
		{"event-sourcing", "Event sourcing stores state as events. Event sourcing CQRS separates read and write models."},
		{"unit-testing", "Unit tests verify small units of code. Unit testing mock isolates dependencies."},
		{"dependency-injection", "DI provides dependencies from outside. Dependency injection DI improves testability."},
		{"keyword-search", "Keyword search matches terms. Keyword search full-text uses inverted indexes."},
		{"websocket-protocol", "WebSockets enable bidirectional communication. WebSocket real-time is used for chat and live updates."},
		{"message-queue", "Message queues decouple producers and consumers. Message queue asynchronous enables scaling."},
		{"rate-limiting", "Rate limiting protects APIs. Rate limiting throttling can be per-user or global."},
		{"circuit-breaker", "Circuit breaker stops cascading failures. Circuit breaker resilience pattern fails fast."},
		{"feature-flags", "Feature flags toggle functionality. Feature flags rollout allows gradual release."},
		{"structured-logging", "Structured logging aids debugging. Logging structured logs use JSON or key-value."},
		{"distributed-tracing", "Tracing follows requests across services. Distributed tracing spans show latency breakdown."},
		{"input-validation", "Validation rejects bad input. Input validation sanitization prevents injection."},
		{"password-hashing", "Passwords must be hashed. Password hashing bcrypt is resistant to rainbow tables."},
		{"backup-strategy", "Backups protect against data loss. Backup strategy recovery includes RTO and RPO."},
		{"horizontal-scaling", "Horizontal scaling adds more nodes. Horizontal scaling sharding partitions data."},
		{"graceful-shutdown", "Graceful shutdown drains connections. Graceful shutdown signal handles SIGTERM."},
		{"health-check", "Health checks indicate readiness. Health check liveness is used by orchestrators."},
		{"secrets-management", "Secrets must not be in code. Secrets management vault encrypts and audits."},
		{"api-gateway", "API gateways sit in front of services. API gateway routing and rate limiting are common."},
		{"database-migration", "Migrations evolve schema. Database migration schema version v42 should be reversible when possible."},
		{"incident-response", "Incidents need a clear process. Incident response runbook defines steps."},
		{"chaos-engineering", "Chaos engineering tests resilience. Chaos engineering resilience uses fault injection."},
		{"canary-release", "Canary rolls out to a subset. Canary release gradual reduces blast radius."},
		{"refactoring", "Refactoring improves structure. Refactoring code quality preserves behavior."},
	}

	files := make([]CorpusFile, 0, len(topics))
	for _, t := range topics {
		files = append(files, CorpusFile{Slug: t.slug, Content: t.content})
	}

	phrases := []string{
		"Python programming", "Kubernetes container", "React hooks", "Go golang", "PostgreSQL relational",
		"Docker container", "REST API", "GraphQL query", "TypeScript type", "Redis in-memory",
		"Terraform infrastructure", "Prometheus monitoring", "gRPC remote", "OAuth authorization", "Git version",
		"SQL structured", "Microservices architecture", "Apache Kafka", "Nginx reverse", "Design patterns",
		"Database indexing", "Cryptography encryption", "Load balancing", "Caching strategy", "Event sourcing",
		"Unit testing", "Dependency injection", "Keyword search", "WebSocket real-time", "Message queue",
		"Rate limiting", "Circuit breaker", "Feature flags", "Logging structured", "Distributed tracing",
		"Input validation", "Password hashing", "Backup strategy", "Horizontal scaling", "Graceful shutdown",
		"Health check", "Secrets management", "API gateway", "Database migration", "Incident response",
		"Chaos engineering", "Canary release", "Refactoring code",
	}
	var cases []QueryTestCase
	used := make(map[string]bool)
	for _, p := range phrases {
		for _, f := range files {
			if containsPhrase(f, p) && !used[f.Slug] {
				cases = append(cases, QueryTestCase{
					Query:         p,
					ExpectedSlugs: []string{f.Slug},
					Description:   fmt.Sprintf("query %q should return %s", p, f.Slug),
				})
				used[f.Slug] = true
				break
			}
		}
	}

	// Regex sub-query: "version v42" appears only in the migration file.
	cases = append(cases, QueryTestCase{
		Query:         "/v[0-9]+/ migration",
		ExpectedSlugs: []string{"database-migration"},
		Description:   "regex sub-query should return database-migration",
	})

	return &Corpus{Files: files, TestCases: cases}
}

func containsPhrase(f CorpusFile, phrase string) bool {
	return strings.Contains(strings.ToLower(f.Content), strings.ToLower(phrase))
}
