// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package retention deletes audit records that fall outside the configured
// retention policy.
//
// A Policy combines an age bound (max_age) and a count ceiling (max_count).
// Pruner.Prune selects the oldest occurrences that satisfy every enabled
// bound, finds the highest selected id (the high-water mark), and then runs
// exactly two statements in this order:
//
//	DELETE FROM <metadata>    WHERE occurrence_id <= hwm
//	DELETE FROM <occurrences> WHERE <selected> AND id <= hwm
//
// Because metadata goes first, no metadata row outlives its occurrence. The
// executed statements are returned in Result.Plan so the run can itself be
// audited; Job does that by logging a meta-event through the audit logger.
//
// Pruning is skipped while the archive migration flag is raised. The flag is
// advisory: see AdvisoryFlag.
package retention
