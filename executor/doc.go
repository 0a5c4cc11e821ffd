// Package executor provides the configurable node executors: subprocess
// commands, remote HTTP agents and static templates.
//
// Executors are declared in configuration and registered by name so that
// workflow definitions can reference them:
//
//	executors:
//	  - name: summarize
//	    type: command
//	    command:
//	      binary: ./agents/summarize.sh
//	      timeout: 2m
//	  - name: critic
//	    type: http
//	    http:
//	      url: http://critic:8080/v1/execute
//	    rate_limit:
//	      rate: 2
//	      burst: 4
package executor
