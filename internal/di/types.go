/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived instance of the application. It is
 * built by Wire() and handed to the server and the CLI.
 */
package di

import (
	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/clients/mfapi"
	"github.com/aristath/navreturns/internal/database"
	"github.com/aristath/navreturns/internal/events"
	"github.com/aristath/navreturns/internal/metrics"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/publish"
	"github.com/aristath/navreturns/internal/work/batch"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: cache (re-fetchable NAV histories) and results (computed returns, run log)
 * - Clients: mfapi.in NAV history client, backed by the cache
 * - Repositories: cache entries and stored fund returns
 * - Services: return calculator, batch runner, publisher, event hub
 */
type Container struct {
	// Databases
	CacheDB   *database.DB // NAV histories fetched from the provider
	ResultsDB *database.DB // Computed fund returns and batch run records

	// Repositories
	CacheRepo   *clientdata.Repository
	ResultsRepo *funds.Repository

	// Clients
	MFAPIClient *mfapi.Client

	// Services
	Metrics    *metrics.Registry
	Calculator *returns.Calculator
	Runner     *batch.Runner
	Publisher  *publish.S3Publisher
	EventHub   *events.Hub
}

// Databases returns every open database, for health and maintenance
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.CacheDB, c.ResultsDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// Close closes all databases
func (c *Container) Close() error {
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
