package component

// Ecosystem constructors. They fill the fields each ecosystem treats as
// identifying and leave the rest empty.

func Npm(name, version string) Identity {
	return Identity{Type: TypeNpm, Name: name, Version: version}
}

func Maven(groupID, artifactID, version string) Identity {
	return Identity{Type: TypeMaven, Namespace: groupID, Name: artifactID, Version: version}
}

func Pip(name, version string) Identity {
	return Identity{Type: TypePip, Name: name, Version: version}
}

func Cargo(name, version string) Identity {
	return Identity{Type: TypeCargo, Name: name, Version: version}
}

// Go splits nothing: the whole module path is the name.
func Go(modulePath, version string) Identity {
	return Identity{Type: TypeGo, Name: modulePath, Version: version}
}

// Conan identities carry the optional user/channel pair as namespace.
func Conan(name, version, userChannel string) Identity {
	return Identity{Type: TypeConan, Namespace: userChannel, Name: name, Version: version}
}

func Vcpkg(name, version, triplet, portVersion string) Identity {
	return Identity{
		Type:       TypeVcpkg,
		Name:       name,
		Version:    version,
		Qualifiers: NewQualifiers("triplet", triplet, "port_version", portVersion),
	}
}

func Linux(distribution, release, name, version string) Identity {
	return Identity{
		Type:       TypeLinux,
		Name:       name,
		Version:    version,
		Qualifiers: NewQualifiers("distribution", distribution, "release", release),
	}
}

func Spdx(name, spdxVersion, hash string) Identity {
	return Identity{Type: TypeSpdx, Name: name, Version: spdxVersion, Hash: hash}
}

func Swift(name, version, repositoryURL string) Identity {
	return Identity{
		Type:       TypeSwift,
		Name:       name,
		Version:    version,
		Qualifiers: NewQualifiers("repository_url", repositoryURL),
	}
}

func Git(repositoryURL, commit string) Identity {
	return Identity{Type: TypeGit, Name: repositoryURL, Version: commit}
}

// DockerReference identities keep the registry/repository path as name and
// the tag as version. A digest, when present, goes into Hash.
func DockerReference(repository, tag, digest string) Identity {
	return Identity{Type: TypeDockerReference, Name: repository, Version: tag, Hash: digest}
}
