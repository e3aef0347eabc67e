package profile

// DefaultName is the profile launched when the user does not pick one.
const DefaultName = "default"

// builtin returns the built-in default profile. It reproduces the
// environment the training entrypoint has always been launched with:
// tcmalloc preloaded with a large-allocation warning threshold, quiet
// TensorFlow logs, the local TPU runtime address, 48 simulated host
// devices for XLA, and 32-bit default precision.
func builtin() *rawProfile {
	return &rawProfile{
		name:    DefaultName,
		command: "python3",
		args:    []string{"main.py"},
		env: map[string]string{
			"LD_PRELOAD":           "/usr/lib/x86_64-linux-gnu/libtcmalloc.so.4",
			"TF_CPP_MIN_LOG_LEVEL": "4",
			"XRT_TPU_CONFIG":       "localservice;0;localhost:51011",
			"XLA_FLAGS":            "--xla_force_host_platform_device_count=48",
			"TCMALLOC_LARGE_ALLOC_REPORT_THRESHOLD": "60000000000",
			"JAX_ENABLE_X64":                        "0",
			"JAX_DEFAULT_DTYPE_BITS":                "32",
		},
	}
}
