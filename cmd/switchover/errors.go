package main

import "errors"

// errMissingRequired is returned when cobra's own flag parsing can't
// express a requirement (here: --method/--old-hub-action are required
// for run, validate and resume; decommission sets them itself).
var errMissingRequired = errors.New("--method and --old-hub-action are required")
