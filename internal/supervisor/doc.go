// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

/*
Package supervisor runs the long-lived Auditkeep services under suture v4.

# Tree

	RootSupervisor ("auditkeep")
	├── StorageSupervisor ("storage-layer")
	│   └── DrainService (buffer replay)
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── PruneService (retention)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted by its own layer with suture's backoff; the
other layers keep running. Supervisor events are logged through sutureslog
into the process zerolog logger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddStorageService(services.NewDrainService(auditLogger, cfg.Buffer.DrainInterval))
	tree.AddMaintenanceService(services.NewPruneService(job, cfg.Retention.Interval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
*/
package supervisor
