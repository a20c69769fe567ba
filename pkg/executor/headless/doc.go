// Package headless implements the non-interactive frametree executor.
//
// The headless executor polls the iframe tree of every tracked session on a
// fixed interval and prints it to stdout, suitable for CI jobs and scripted
// page audits. It provides:
//
// - Leveled, colored progress output (quiet, normal, verbose, debug)
// - An optional run limit by duration or poll count
// - A final summary with per-session frame counts
// - JSON and markdown artifacts with the last observed trees
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                 Headless Executor                        │
//	│  - Poll loop                                            │
//	│  - Summary and artifacts                                │
//	└──────────────────┬──────────────────────────────────────┘
//	                   │ Source.Sessions / PresenterChannel
//	                   ▼
//	        ┌──────────────────────┐
//	        │   presenter          │
//	        │ (GET_IFRAME_TREE)    │
//	        └──────────────────────┘
package headless
