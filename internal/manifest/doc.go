// Package manifest defines the declarative plugin manifest: identity,
// typed interface, runtime selection, and the permission grant.
//
// A manifest is the unit of review. Permissions are declarative and
// auditable independent of the plugin's code, which is what lets a
// reviewer assess risk without executing anything. Validation is
// structural and happens before a manifest may reach the loader; an
// invalid manifest never executes.
//
// # Manifest file
//
// Manifests are JSON documents:
//
//	{
//	  "name": "component-gen",
//	  "version": "1.2.0",
//	  "displayName": "Component Generator",
//	  "category": "code_generation",
//	  "tags": ["react", "typescript"],
//	  "capabilities": ["code_generation"],
//	  "runtime": "javascript",
//	  "entryPoint": "main.js",
//	  "inputs": [
//	    {"name": "componentName", "type": "string", "required": true}
//	  ],
//	  "outputs": [
//	    {"name": "code", "type": "string"}
//	  ],
//	  "permissions": {
//	    "filesystem": {"read": ["src/**"], "write": ["src/components/*"]},
//	    "network": {"http": ["api.github.com"]},
//	    "ai": ["generate"]
//	  }
//	}
//
// # Permissions
//
// Filesystem and network grants are glob patterns ('*' matches any run
// of characters, '?' a single character). A resource is authorized iff
// at least one grant pattern matches. API, database, and secret grants
// are exact-name membership checks. Absence of a grant is deny.
package manifest
