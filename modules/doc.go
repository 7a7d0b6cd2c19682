// Package modules implements CommonJS-style module loading for a goja
// runtime.
//
// A Manager resolves specifiers in three steps: relative specifiers are
// combined with the parent module's directory and normalized lexically;
// synthetic loaders (registered in Go or with define) are consulted by id;
// otherwise resolvers are asked in registration order and the first match
// supplies the asset path used as the cache key.
//
// A module record is inserted into the cache before its body runs, so
// circular requires observe the partially populated exports object instead
// of recursing. A failed first load leaves no cache entry; a failed reload
// restores the previous exports.
//
// Module bodies are wrapped as
//
//	(function(exports, require, module, __filename, __dirname){ <body>
//	})
//
// which keeps line numbers intact for stack traces and source maps.
package modules
