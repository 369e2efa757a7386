package usecase

// BuildRunFailureBlocks is exported for testing
var BuildRunFailureBlocks = buildRunFailureBlocks
