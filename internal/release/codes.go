package release

// Process exit codes. Each pipeline abort carries the code of the phase that
// produced it, so scripts can tell a dirty tree from a failed publish.
const (
	// CodeSuccess covers both a completed run and a declined confirmation.
	CodeSuccess = 0

	// CodeDirty aborts the preflight phase on an unclean working tree.
	CodeDirty = 101

	// CodeCommit aborts the version-commit phase when git commit fails.
	CodeCommit = 102

	// CodePublish aborts the publish phase: the publish call failed or the
	// registry index never showed the new version.
	CodePublish = 103

	// CodeTag aborts the tag phase when git tag fails.
	CodeTag = 104

	// CodePostCommit aborts the post-release phase when its commit fails.
	CodePostCommit = 105

	// CodePush aborts the push phase when any push fails.
	CodePush = 106

	// CodeHook aborts the version-commit phase when the pre-release hook
	// exits non-zero.
	CodeHook = 107

	// CodeFatal is reserved for uncaught fatal errors.
	CodeFatal = 128
)
