package version

// Version is the current ld-weaver release
const Version = "0.3.0"
