// Package forecast produces the rolling net-balance prediction consumed by
// the storage dispatcher. The estimator extrapolates level and trend per
// tracked quantity, corrected by the locally learned model weights and the
// external weather feed.
package forecast
