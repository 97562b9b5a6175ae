package wake

// PlanSync exposes the reconciliation diff to external tests.
var PlanSync = planSync
