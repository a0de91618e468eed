// Package services holds the library's business rules. Every operation takes
// the caller's models.Scope and restricts reads and writes to the caller's
// school unless the caller is a superuser.
//
// Services defined in this package:
//   - AuthService: login and per-request scope resolution
//   - SchoolService: schools, accounts and school profiles
//   - CatalogService: categories and books
//   - StudentService: class groups and students
//   - LedgerService: borrow transactions and their state machine
//   - ImportService: CSV/XLSX student and book imports and exports
//   - ReportService: dashboards and printable reports
package services
