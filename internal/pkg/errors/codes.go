package errors

// Error kinds per the error handling design: IoError and startup DbError are
// fatal (non-zero ExitCode), the rest are per-row/per-batch and are logged
// as warnings by the caller rather than propagated.
var (
	ErrIO = New(
		"IO_ERROR",
		"failed to read calibration, base map, or output directory",
		1,
	)

	ErrDatabase = New(
		"DB_ERROR",
		"database connection or query failure",
		1,
	)

	ErrData = New(
		"DATA_ERROR",
		"malformed row",
		0,
	)

	ErrOutOfRange = New(
		"OUT_OF_RANGE",
		"value outside its domain bounds",
		0,
	)

	ErrNumericDomain = New(
		"NUMERIC_DOMAIN",
		"geodesic or polygon computation failed on this input",
		0,
	)

	ErrEmptyIntersection = New(
		"EMPTY_INTERSECTION",
		"no feasible subset of constraint disks intersects",
		0,
	)

	ErrNoObservations = New(
		"NO_OBSERVATIONS",
		"no landmark has both a calibration and RTT samples",
		0,
	)
)
