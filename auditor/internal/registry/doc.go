// Package registry reads premium stores from the store registry and appends
// speed score records to it.
//
// Registry is implemented by three backends, chosen by Open from the URI scheme:
//   - Mongo (mongodb://, mongodb+srv://): the production registry. Stores are
//     read from the "stores" collection with
//     {plan: {$nin: ["free","null"]}, app_version: "3"}; scores are appended
//     to "speedscores" as {storeId, scores: {home: {desktop}}, requestedAt}.
//   - Postgres (postgres://): gorm, tables stores / speedscores.
//   - SQLite (sqlite://path, file:path): modernc, pure Go; local runs and tests.
//
// Eligible is the in-process form of the eligibility rule. All backends agree
// with it, including the case of a missing plan, which is eligible.
//
// InsertScore is append-only and not idempotent: running the same batch twice
// writes two records per store.
package registry
