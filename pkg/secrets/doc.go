// Package secrets resolves ${secret:name} references in configuration
// values, so the cloud resource key does not have to live in the config
// file.
//
// Two providers are available. EnvProvider reads CLOUDENGINE_SECRET_<NAME>
// (upper-cased, hyphens become underscores). FileProvider reads one file per
// secret from a directory, as mounted by Kubernetes; files must be 0600 or
// 0400.
//
//	resolver := secrets.NewResolver(time.Minute,
//	    secrets.NewEnvProvider("CLOUDENGINE_SECRET_"),
//	    fileProvider,
//	)
//	key, err := resolver.ResolveReferences(ctx, cfg.Cloud.ResourceKey)
//
// Providers are tried in order and the first value found wins.
package secrets
