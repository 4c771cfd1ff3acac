// Package core implements the inventory bulk ingestion pipeline.
//
// The package holds all domain logic independent of the HTTP and CLI
// layers. Both cmd/server and cmd/opsdash drive the same [Service].
//
// # Pipeline
//
// An upload moves through two stages:
//
//  1. [Service.Ingest] decodes the bytes ([NormalizeEncoding], [SniffDelimiter],
//     [Tokenize], or [ReadSpreadsheet] for XLSX), checks the header with
//     [CheckRequiredColumns], validates each row with [ValidateRow] and stages
//     every row as VALID or INVALID under a new ImportJob.
//  2. [Service.Promote] upserts the job's VALID rows into the product catalog
//     by SKU, appends one inventory level per product touched and marks the
//     rows PROCESSED.
//
// Staging commits in one transaction, so a job is never COMPLETED with only
// part of its rows. Promotion of a single job is serialized in-process and,
// on PostgreSQL, by a row lock on the job.
//
// # Jobs
//
// [Service.ListJobs], [Service.GetJob] and [Service.ListInvalidRows] read
// the staging area; [Service.DeleteJob] and [Service.DeleteAllJobs] clear it.
// [Service.Preview] runs the ingest checks without writing anything.
// [Service.StartStaleJobReaper] fails jobs left PROCESSING by a crash.
//
// # Error Handling
//
// Failures are returned as [*Error] carrying an [ErrorKind] and, for input
// problems, a machine-readable reason ("empty", "unparseable",
// "missing-column:<name>"). [MapError] turns any error into a [UserMessage]
// with a support code:
//
//   - IMP001-IMP004: Import errors (empty, unparseable, missing column, no job)
//   - DB001-DB008: Database errors (constraints, connections, busy)
//   - FILE001-FILE004: File errors (size, missing file)
//   - UPL002-UPL005: Upload errors (busy, cancelled, timeout)
package core
