/*
Package log provides structured logging for gridfabric using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

gridfabric's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("fabric")                  │          │
	│  │  - WithNodeID("node-1123")                │          │
	│  │  - WithCircuit("circuit-abc")               │          │
	│  │  - WithService("echo::node-1")              │          │
	│  │  - WithFamily("pike")                       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "fabric",                   │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "circuit message routed"              │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2024-10-13T10:30:00Z INF circuit message routed component=fabric │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all gridfabric packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add node ID context
  - WithCircuit: Add circuit ID context
  - WithService: Add circuit service ID context
  - WithFamily: Add transaction family name context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "Checking node resources: CPU=4, Memory=8GB"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "Circuit committed: web (nginx:latest)"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "Node heartbeat missed (1 occurrence)"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "Failed to route message: recipient not in directory"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "Failed to initialize admin coordinator: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/gridfabric/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/gridfabric.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("Fabric initialized successfully")
	log.Debug("Checking circuit roster")
	log.Warn("High consensus mailbox backlog")
	log.Error("Failed to connect to peer")
	log.Fatal("Cannot start without circuit directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("service_id", "abc::node-1").
		Int("replicas", 3).
		Msg("Circuit committed")

	log.Logger.Error().
		Err(err).
		Str("node_id", "node-1").
		Msg("Peer authorization callback failed")

Component Loggers:

	// Create component-specific logger
	fabricLog := log.WithComponent("fabric")
	fabricLog.Info().Msg("Starting router")
	fabricLog.Debug().Str("circuit_id", "circuit-abc").Msg("Routing message")

	// Multiple context fields
	svcLog := log.WithComponent("admin").
		With().Str("node_id", "node-1").
		Str("circuit_id", "circuit-abc").Logger()
	svcLog.Info().Msg("Proposal accepted")
	svcLog.Error().Err(err).Msg("Proposal aborted")

Context Logger Helpers:

	// Node-specific logs
	nodeLog := log.WithNodeID("node-1123")
	nodeLog.Info().Msg("Node joined circuit")

	// Circuit-specific logs
	circuitLog := log.WithCircuit("circuit-abc")
	circuitLog.Info().Msg("Circuit committed")

	// Family-specific logs
	familyLog := log.WithFamily("pike")
	familyLog.Warn().Msg("Transaction rejected")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/gridfabric/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("gridfabric starting")

		// Component-specific logging
		fabricLog := log.WithComponent("fabric")
		fabricLog.Info().
			Str("node_id", "node-1").
			Int("circuit_count", 5).
			Msg("Loaded circuit directory")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "runtime").
			Msg("Failed to connect to peer")

		log.Info("gridfabric stopped")
	}

# Integration Points

This package integrates with:

  - pkg/fabric: Logs circuit commits, routing, and peer authorization
  - pkg/admin: Logs two-phase commit proposals and event dispatch
  - pkg/families: Logs transaction rejections per family
  - pkg/batchstore: Logs batch status transitions
  - pkg/projector: Logs commit-event projection and fork resolution

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"fabric","time":"2024-10-13T10:30:00Z","message":"Circuit committed"}
	{"level":"info","component":"admin","circuit_id":"circuit-1","time":"2024-10-13T10:30:01Z","message":"Proposal accepted"}
	{"level":"error","component":"projector","block_num":42,"error":"unrecognized namespace","time":"2024-10-13T10:30:02Z","message":"Failed to project state change"}

Console Format (Development):

	2024-10-13T10:30:00Z INF Circuit committed component=fabric
	2024-10-13T10:30:01Z INF Proposal accepted component=admin circuit_id=circuit-1
	2024-10-13T10:30:02Z ERR Failed to project state change component=projector block_num=42 error="unrecognized namespace"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Records the error text under the "error" field (no stack trace is attached)
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or ID fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path
  - Check: Log statements in tight loops
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

gridfabric doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/gridfabricd
	/var/log/gridfabricd/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u gridfabricd -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"fabric" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="fabric"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "fabric"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:gridfabricd component:fabric status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check gridfabric process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "dial peer"
  - Description: Circuit fabric transport connection issues
  - Action: Check peer endpoint reachability, node directory entries

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() so they land in the "error" field
  - Include context (node ID, service ID, task ID)

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
