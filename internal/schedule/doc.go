// Package schedule toggles sync on cron specs, for example enabling it at
// 08:00 and disabling it at 23:30. Specs take five fields, an optional
// leading seconds field, or a descriptor such as @daily.
package schedule
